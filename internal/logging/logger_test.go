package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"khoj/internal/services"
)

func TestConsoleHandlerIncludesComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.With(String(FieldComponent, "fusion")).Info("verification complete",
		Float64("confidence", 81.5),
		String("status", "PROBABLE"))

	out := buf.String()
	if !strings.Contains(out, "[fusion]") {
		t.Fatalf("missing component prefix in %q", out)
	}
	if !strings.Contains(out, "confidence=81.5") {
		t.Fatalf("missing confidence attr in %q", out)
	}
	if !strings.Contains(out, "status=PROBABLE") {
		t.Fatalf("missing status attr in %q", out)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("sighting received", String("location", "Dadar Railway Station"))

	if !strings.Contains(buf.String(), `location="Dadar Railway Station"`) {
		t.Fatalf("expected quoted location in %q", buf.String())
	}
}

func TestWithContextAddsCaseFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	ctx := services.WithCaseID(context.Background(), 42)
	ctx = services.WithRequestID(ctx, "req-1")
	WithContext(ctx, logger).Info("processing")

	out := buf.String()
	if !strings.Contains(out, "case_id=42") {
		t.Fatalf("missing case_id in %q", out)
	}
	if !strings.Contains(out, "correlation_id=req-1") {
		t.Fatalf("missing correlation_id in %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.input); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
