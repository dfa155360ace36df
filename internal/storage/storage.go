// Package storage uploads case photos to an optional object-storage bucket
// so alerts and dashboards can link a public URL. The system runs fully
// degraded (local paths only) when the collaborator is disabled.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"khoj/internal/config"
	"khoj/internal/services"
)

// Client is the object-storage contract consumed by the case service.
type Client interface {
	// Upload pushes a local file into the given folder and returns its
	// public URL. A disabled client returns an empty URL and no error.
	Upload(ctx context.Context, localPath, folder string) (string, error)
	// Download fetches a public URL into the local path.
	Download(ctx context.Context, url, localPath string) error
	// Enabled reports whether uploads actually leave the machine.
	Enabled() bool
}

// NewClient builds a bucket-backed client when storage is configured,
// otherwise the disabled noop.
func NewClient(cfg *config.Config) Client {
	if !cfg.Storage.Enabled || strings.TrimSpace(cfg.Storage.Endpoint) == "" {
		return Disabled{}
	}
	return &bucketClient{
		endpoint: strings.TrimRight(cfg.Storage.Endpoint, "/"),
		apiKey:   cfg.Storage.APIKey,
		bucket:   cfg.Storage.Bucket,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type bucketClient struct {
	endpoint string
	apiKey   string
	bucket   string
	client   *http.Client
}

func (b *bucketClient) Enabled() bool { return true }

func (b *bucketClient) Upload(ctx context.Context, localPath, folder string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrInput, "storage", "upload", "open local file", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", services.Wrap(services.ErrUpstream, "storage", "upload", "build form", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", services.Wrap(services.ErrUpstream, "storage", "upload", "copy file into form", err)
	}
	if err := writer.WriteField("folder", folder); err != nil {
		return "", services.Wrap(services.ErrUpstream, "storage", "upload", "write folder field", err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrUpstream, "storage", "upload", "finalize form", err)
	}

	url := fmt.Sprintf("%s/buckets/%s/objects", b.endpoint, b.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", services.Wrap(services.ErrUpstream, "storage", "upload", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUpstream, "storage", "upload", "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", services.Wrap(services.ErrUpstream, "storage", "upload",
			fmt.Sprintf("bucket returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", services.Wrap(services.ErrUpstream, "storage", "upload", "decode response", err)
	}
	return result.URL, nil
}

func (b *bucketClient) Download(ctx context.Context, url, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrUpstream, "storage", "download", "build request", err)
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUpstream, "storage", "download", "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return services.Wrap(services.ErrUpstream, "storage", "download",
			fmt.Sprintf("bucket returned %d", resp.StatusCode), nil)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "storage", "download", "create local file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = os.Remove(localPath)
		return services.Wrap(services.ErrPersistence, "storage", "download", "write local file", err)
	}
	return out.Close()
}

// Disabled is the noop client used when object storage is not configured.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Upload(context.Context, string, string) (string, error) {
	return "", nil
}

func (Disabled) Download(context.Context, string, string) error {
	return services.Wrap(services.ErrCapabilityUnavailable, "storage", "download", "object storage disabled", nil)
}
