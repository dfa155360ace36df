package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInput marks malformed or unreadable caller input (missing photo,
	// empty fields). Surfaces as a 4xx; never retried.
	ErrInput = errors.New("input error")
	// ErrCapabilityUnavailable marks an optional subsystem (pose backend,
	// remote model) that is absent or running in simulation mode. Scoring
	// downgrades to documented defaults; never surfaced to callers.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrUpstream marks a failed external model call (timeout, auth, quota).
	// Caught locally; fusion proceeds with defaults.
	ErrUpstream = errors.New("upstream failure")
	// ErrPersistence marks a failed case-store write. The whole operation
	// fails, but computed results are still returned to the caller.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks unusable runtime configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUpstream
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a tagged error to the response status the API server
// should emit.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPersistence):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
