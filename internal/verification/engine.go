package verification

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"khoj/internal/gait"
	"khoj/internal/logging"
	"khoj/internal/scoring"
	"khoj/internal/services"
	"khoj/internal/vision"
)

// Default scores substituted when an upstream scorer fails. Fusion proceeds
// with these rather than aborting the verification.
const (
	DefaultGaitScore   = 50.0
	DefaultVisionScore = vision.DefaultConfidence
)

// Evidence is the immutable input bundle for one verification call.
type Evidence struct {
	ImagePath       string
	LocationText    string
	DescriptionText string
	// TargetPrompt describes the missing person for the vision comparison,
	// typically assembled from the case record.
	TargetPrompt string
}

// Engine runs the four sub-scorers and fuses their output. Instances are
// safe for concurrent use; each verification call is independent.
type Engine struct {
	analyzer vision.Analyzer
	gait     *gait.Extractor
	location *scoring.LocationScorer
	policy   Policy
	logger   *slog.Logger
}

// NewEngine wires a fusion engine over its collaborators.
func NewEngine(analyzer vision.Analyzer, extractor *gait.Extractor, location *scoring.LocationScorer, policy Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if policy == "" {
		policy = PolicyResolution
	}
	return &Engine{
		analyzer: analyzer,
		gait:     extractor,
		location: location,
		policy:   policy,
		logger:   logger.With(logging.String(logging.FieldComponent, "verification")),
	}
}

// Verify scores the evidence and fuses the result. The four sub-scores are
// computed concurrently and joined before fusion; a cancelled context aborts
// the whole call with no partial result. Only the no-evidence case returns a
// terminal error, and even then the fail-closed result is populated.
func (e *Engine) Verify(ctx context.Context, evidence Evidence) (Result, error) {
	imageData, err := os.ReadFile(evidence.ImagePath)
	if err != nil {
		message := fmt.Sprintf("sighting image unreadable: %v", err)
		e.logger.Warn("verification failed closed", logging.Error(err))
		return FailClosed(message), services.Wrap(services.ErrInput, "verification", "verify", "read sighting image", err)
	}

	var (
		analysis   vision.Analysis
		gaitResult gait.Result
		components ScoreComponents
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		result, err := e.analyzer.AnalyzeImage(groupCtx, imageData, evidence.TargetPrompt)
		if err != nil || result.Status != vision.StatusSuccess {
			e.logger.Warn("vision analysis unavailable, using default confidence", logging.Error(err))
			components.VisionConfidence = DefaultVisionScore
			return nil
		}
		analysis = result
		components.VisionConfidence = result.Confidence
		return nil
	})
	group.Go(func() error {
		gaitResult = e.gait.Extract(groupCtx, evidence.ImagePath)
		if gaitResult.Status != gait.StatusSuccess {
			components.GaitScore = DefaultGaitScore
			return nil
		}
		components.GaitScore = gaitResult.PostureScore
		return nil
	})
	group.Go(func() error {
		components.LocationScore = e.location.Score(evidence.LocationText)
		return nil
	})
	group.Go(func() error {
		components.DescriptionScore = scoring.DescriptionScore(evidence.DescriptionText)
		return nil
	})
	if err := group.Wait(); err != nil {
		return FailClosed(err.Error()), err
	}
	if err := ctx.Err(); err != nil {
		return FailClosed(err.Error()), err
	}

	profile := ProbeResolution(evidence.ImagePath)
	result := Fuse(components, profile, e.policy)
	result.AnalysisText = analysis.Text
	result.GaitSignature = gaitResult.SignatureHash

	e.logger.Info("sighting verified",
		logging.Float64("confidence", result.FinalConfidence),
		logging.String("status", string(result.Status)),
		logging.String("resolution", string(result.Resolution)),
		logging.Bool("verified", result.Verified))
	return result, nil
}
