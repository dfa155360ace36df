// Package vision wraps the language/vision model used to analyze sighting
// photos and generate case narratives. A credential-free simulation mode is a
// first-class citizen so the system stays demonstrable without network access.
package vision

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"khoj/internal/config"
	"khoj/internal/logging"
)

// DefaultConfidence is used whenever the model's reply carries no parseable
// percentage.
const DefaultConfidence = 75.0

// Analysis statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Analysis is the outcome of one image analysis call.
type Analysis struct {
	Status     string  `json:"status"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Analyzer is the narrow model contract the rest of the system depends on.
type Analyzer interface {
	// AnalyzeImage compares a sighting photo against the supplied context
	// prompt and returns the model's assessment.
	AnalyzeImage(ctx context.Context, imageData []byte, prompt string) (Analysis, error)
	// GenerateText answers a free-form prompt, used for case narratives and
	// age-progression descriptions.
	GenerateText(ctx context.Context, prompt string) (string, error)
	// Embedding returns a vector representation of the text for semantic
	// search.
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// New selects the real client or the simulator based on configuration. Mock
// mode engages whenever it is requested explicitly or no credential is set.
func New(cfg *config.Config, logger *slog.Logger) Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MockVision() {
		logger.Info("vision model running in simulation mode",
			logging.String(logging.FieldComponent, "vision"))
		return NewSimulator()
	}
	return newOpenAIAnalyzer(cfg.Vision, logger)
}

var confidencePattern = regexp.MustCompile(`(\d+)\s*%`)

// ParseConfidence extracts the first integer percentage from model output.
// Text without one yields DefaultConfidence.
func ParseConfidence(text string) float64 {
	match := confidencePattern.FindStringSubmatch(text)
	if match == nil {
		return DefaultConfidence
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return DefaultConfidence
	}
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return float64(value)
}
