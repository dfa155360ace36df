package alerts_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"khoj/internal/alerts"
	"khoj/internal/config"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Alerts.NtfyTopic = ""
	svc := alerts.NewService(&cfg)
	if err := svc.NotifyCaseOpened(context.Background(), "Arjun", "HIGH"); err != nil {
		t.Fatalf("expected noop service to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc alerts.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "case opened",
			send: func(svc alerts.Service) error {
				return svc.NotifyCaseOpened(context.Background(), "Arjun Kumar", "HIGH")
			},
			expectTitle:    "Khoj - Case Opened",
			expectMessage:  "New missing person case: Arjun Kumar (priority HIGH)",
			expectTags:     "khoj,case,opened",
			expectPriority: "high",
		},
		{
			name: "verified sighting",
			send: func(svc alerts.Service) error {
				return svc.NotifyVerifiedSighting(context.Background(), "Arjun Kumar", "Dadar Railway Station", 81.5)
			},
			expectTitle:    "Khoj - Verified Sighting",
			expectMessage:  "Verified sighting of Arjun Kumar at Dadar Railway Station (confidence 81.5%)",
			expectTags:     "khoj,sighting,verified",
			expectPriority: "high",
		},
		{
			name: "camera match",
			send: func(svc alerts.Service) error {
				return svc.NotifyMatchFound(context.Background(), "Arjun Kumar", "CAM-DADAR-02", 77.0)
			},
			expectTitle:    "Khoj - Camera Match",
			expectMessage:  "Possible match for Arjun Kumar on camera CAM-DADAR-02 (confidence 77.0%)",
			expectTags:     "khoj,sweep,match",
			expectPriority: "high",
		},
		{
			name: "case closed",
			send: func(svc alerts.Service) error {
				return svc.NotifyCaseClosed(context.Background(), "Arjun Kumar", "FOUND")
			},
			expectTitle:   "Khoj - Case Closed",
			expectMessage: "Case closed: Arjun Kumar (FOUND)",
			expectTags:    "khoj,case,closed",
		},
		{
			name: "error",
			send: func(svc alerts.Service) error {
				return svc.NotifyError(context.Background(), errors.New("store write failed"), "sighting")
			},
			expectTitle:    "Khoj - Error",
			expectMessage:  "Error with sighting: store write failed",
			expectTags:     "khoj,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Alerts.NtfyTopic = server.URL
			cfg.Alerts.RequestTimeout = 5

			svc := alerts.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("alert returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Alerts.NtfyTopic = server.URL
	svc := alerts.NewService(&cfg)
	if err := svc.Test(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
