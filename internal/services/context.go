package services

import "context"

type contextKey string

const (
	caseIDKey    contextKey = "case_id"
	reportIDKey  contextKey = "report_id"
	requestIDKey contextKey = "request_id"
)

// WithCaseID annotates context with the missing-person case identifier.
func WithCaseID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, caseIDKey, id)
}

// CaseIDFromContext extracts the case identifier if present.
func CaseIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(caseIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithReportID annotates context with the sighting report identifier.
func WithReportID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, reportIDKey, id)
}

// ReportIDFromContext extracts the sighting report identifier if present.
func ReportIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(reportIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
