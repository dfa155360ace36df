// Package alerts pushes case events to field teams over ntfy. Alerts are
// best-effort: a failed push is logged by callers and never blocks case
// processing.
package alerts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"khoj/internal/config"
)

const userAgent = "Khoj/0.1.0"

// Service defines the alert surface exposed to case-processing components.
type Service interface {
	NotifyCaseOpened(ctx context.Context, name, priority string) error
	NotifyVerifiedSighting(ctx context.Context, name, location string, confidence float64) error
	NotifyMatchFound(ctx context.Context, name, camera string, confidence float64) error
	NotifyCaseClosed(ctx context.Context, name, status string) error
	NotifyError(ctx context.Context, err error, context string) error
	Test(ctx context.Context) error
}

// NewService builds an alert service backed by ntfy when configured. When no
// ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Alerts.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Alerts.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyCaseOpened(ctx context.Context, name, priority string) error {
	name = strings.TrimSpace(name)
	data := payload{
		title:   "Khoj - Case Opened",
		message: fmt.Sprintf("New missing person case: %s (priority %s)", name, priority),
		tags:    []string{"khoj", "case", "opened"},
	}
	if strings.EqualFold(priority, "HIGH") {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyVerifiedSighting(ctx context.Context, name, location string, confidence float64) error {
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)
	data := payload{
		title:    "Khoj - Verified Sighting",
		message:  fmt.Sprintf("Verified sighting of %s at %s (confidence %.1f%%)", name, location, confidence),
		tags:     []string{"khoj", "sighting", "verified"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMatchFound(ctx context.Context, name, camera string, confidence float64) error {
	name = strings.TrimSpace(name)
	camera = strings.TrimSpace(camera)
	data := payload{
		title:    "Khoj - Camera Match",
		message:  fmt.Sprintf("Possible match for %s on camera %s (confidence %.1f%%)", name, camera, confidence),
		tags:     []string{"khoj", "sweep", "match"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCaseClosed(ctx context.Context, name, status string) error {
	name = strings.TrimSpace(name)
	data := payload{
		title:   "Khoj - Case Closed",
		message: fmt.Sprintf("Case closed: %s (%s)", name, status),
		tags:    []string{"khoj", "case", "closed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Khoj - Error",
		message:  builder.String(),
		tags:     []string{"khoj", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) Test(ctx context.Context) error {
	data := payload{
		title:    "Khoj - Test",
		message:  "Alert system test",
		tags:     []string{"khoj", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCaseOpened(context.Context, string, string) error                { return nil }
func (noopService) NotifyVerifiedSighting(context.Context, string, string, float64) error { return nil }
func (noopService) NotifyMatchFound(context.Context, string, string, float64) error       { return nil }
func (noopService) NotifyCaseClosed(context.Context, string, string) error                { return nil }
func (noopService) NotifyError(context.Context, error, string) error                      { return nil }
func (noopService) Test(context.Context) error                                            { return nil }
