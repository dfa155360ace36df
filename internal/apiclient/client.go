// Package apiclient is the HTTP client the CLI uses to talk to a running
// khoj daemon. It mirrors the daemon's JSON API one method per endpoint and
// decodes error payloads into plain errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"khoj/internal/api"
)

// ErrDaemonUnavailable reports that no daemon answered on the configured
// bind address.
var ErrDaemonUnavailable = errors.New("khoj daemon unavailable")

// DaemonStatus mirrors the daemon's status payload.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	CaseDBPath    string         `json:"caseDbPath"`
	LockFilePath  string         `json:"lockFilePath"`
	APIAddress    string         `json:"apiAddress,omitempty"`
	CasesByStatus map[string]int `json:"casesByStatus,omitempty"`
}

// Client talks to the daemon's HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option adjusts client construction.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = timeout
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// New builds a client for the given bind address. A bare host:port gains an
// http scheme.
func New(bind string, opts ...Option) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("daemon address is required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	client := &Client{
		base: base,
		http: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Health reports whether the daemon answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	var payload map[string]string
	return c.getJSON(ctx, "/api/health", &payload)
}

// Status fetches the daemon's runtime status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var status DaemonStatus
	err := c.getJSON(ctx, "/api/status", &status)
	return status, err
}

// CreateCase opens a new case, uploading the reference photo when one is
// given.
func (c *Client) CreateCase(ctx context.Context, req api.NewCaseRequest, photoPath string) (api.Case, error) {
	fields := map[string]string{
		"name":             req.Name,
		"age":              strconv.Itoa(req.Age),
		"description":      req.Description,
		"lastSeenLocation": req.LastSeenLocation,
		"contact":          req.Contact,
	}
	var created api.Case
	err := c.postMultipart(ctx, "/api/cases", fields, photoPath, &created)
	return created, err
}

// ListCases fetches every open case.
func (c *Client) ListCases(ctx context.Context) ([]api.Case, error) {
	var listing api.CaseListResponse
	if err := c.getJSON(ctx, "/api/cases", &listing); err != nil {
		return nil, err
	}
	return listing.Cases, nil
}

// GetCase fetches a single case by id.
func (c *Client) GetCase(ctx context.Context, id int64) (api.Case, error) {
	var found api.Case
	err := c.getJSON(ctx, fmt.Sprintf("/api/cases/%d", id), &found)
	return found, err
}

// CaseStatus fetches the aggregated dashboard view for a case.
func (c *Client) CaseStatus(ctx context.Context, id int64) (api.CaseStatus, error) {
	var status api.CaseStatus
	err := c.getJSON(ctx, fmt.Sprintf("/api/cases/%d/status", id), &status)
	return status, err
}

// SubmitSighting reports a sighting with its photo and returns the scored
// result. The photo is required by the daemon.
func (c *Client) SubmitSighting(ctx context.Context, caseID int64, req api.SightingRequest, photoPath string) (api.Sighting, error) {
	fields := map[string]string{
		"reporterName":    req.ReporterName,
		"reporterContact": req.ReporterContact,
		"locationText":    req.LocationText,
		"descriptionText": req.DescriptionText,
	}
	var sighting api.Sighting
	err := c.postMultipart(ctx, fmt.Sprintf("/api/cases/%d/sightings", caseID), fields, photoPath, &sighting)
	return sighting, err
}

// ListSightings fetches all sightings reported against a case.
func (c *Client) ListSightings(ctx context.Context, caseID int64) ([]api.Sighting, error) {
	var listing api.SightingListResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%d/sightings", "/api/cases", caseID), &listing); err != nil {
		return nil, err
	}
	return listing.Sightings, nil
}

// CloseCase resolves a case, marking the person found when found is true.
func (c *Client) CloseCase(ctx context.Context, caseID int64, found bool) (api.Case, error) {
	var closed api.Case
	payload := map[string]bool{"found": found}
	err := c.postJSON(ctx, fmt.Sprintf("/api/cases/%d/close", caseID), payload, &closed)
	return closed, err
}

// Sweep runs the camera network sweep for a case.
func (c *Client) Sweep(ctx context.Context, caseID int64) (api.SweepResponse, error) {
	var sweep api.SweepResponse
	err := c.postJSON(ctx, fmt.Sprintf("/api/cases/%d/sweep", caseID), nil, &sweep)
	return sweep, err
}

// Search runs a semantic search over stored case descriptions.
func (c *Client) Search(ctx context.Context, query string) ([]api.SearchResult, error) {
	var response api.SearchResponse
	payload := map[string]string{"query": query}
	if err := c.postJSON(ctx, "/api/search", payload, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// AgeProgression asks the daemon for an aged appearance description.
func (c *Client) AgeProgression(ctx context.Context, caseID int64, targetAge int) (api.AgeProgressionResponse, error) {
	var response api.AgeProgressionResponse
	payload := map[string]int{"targetAge": targetAge}
	err := c.postJSON(ctx, fmt.Sprintf("/api/cases/%d/age-progression", caseID), payload, &response)
	return response, err
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body, "application/json")
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, photoPath string, target any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("encode form field %s: %w", key, err)
		}
	}
	if photoPath != "" {
		file, err := os.Open(photoPath)
		if err != nil {
			return fmt.Errorf("open photo: %w", err)
		}
		part, err := writer.CreateFormFile("photo", filepath.Base(photoPath))
		if err != nil {
			file.Close()
			return fmt.Errorf("encode photo: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			file.Close()
			return fmt.Errorf("read photo: %w", err)
		}
		file.Close()
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &body, writer.FormDataContentType())
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return fmt.Errorf("%w at %s", ErrDaemonUnavailable, c.base.Host)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if target == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}

func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsDaemonUnavailable reports whether err means no daemon was reachable.
func IsDaemonUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonUnavailable)
}
