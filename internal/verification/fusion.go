// Package verification implements the sighting-verification fusion engine:
// the weighted combination of vision, gait, and contextual evidence into a
// single confidence value and verdict.
package verification

import "math"

// Policy selects how contextual text evidence enters the fusion.
type Policy string

const (
	// PolicyResolution is the canonical policy: context is the location
	// score alone and weights adapt to the image resolution profile.
	PolicyResolution Policy = "resolution"
	// PolicyLegacy reproduces the earlier fixed-weight scheme where context
	// averaged the location and description scores.
	PolicyLegacy Policy = "legacy"
)

// Verdict thresholds. Verified tracks confidence > 75 regardless of the
// three-state status banding.
const (
	verifiedThreshold = 75.0
	strongThreshold   = 82.0
	probableThreshold = 70.0
)

// Status is the tri-state verification verdict.
type Status string

const (
	StatusVerified   Status = "VERIFIED"
	StatusProbable   Status = "PROBABLE"
	StatusUnverified Status = "UNVERIFIED"
)

// WeightProfile distributes trust across the three fused inputs. Profiles
// always sum to 1.0.
type WeightProfile struct {
	Vision  float64 `json:"vision"`
	Gait    float64 `json:"gait"`
	Context float64 `json:"context"`
}

var (
	lowResWeights  = WeightProfile{Vision: 0.40, Gait: 0.35, Context: 0.25}
	highResWeights = WeightProfile{Vision: 0.60, Gait: 0.20, Context: 0.20}
	legacyWeights  = WeightProfile{Vision: 0.60, Gait: 0.20, Context: 0.20}
)

// WeightsFor returns the weight profile the given policy assigns to a
// resolution class.
func WeightsFor(policy Policy, profile ResolutionProfile) WeightProfile {
	if policy == PolicyLegacy {
		return legacyWeights
	}
	if profile == HighRes {
		return highResWeights
	}
	return lowResWeights
}

// ScoreComponents are the four independently computed sub-scores, each in
// [0, 100].
type ScoreComponents struct {
	VisionConfidence float64 `json:"vision_confidence"`
	GaitScore        float64 `json:"gait_score"`
	LocationScore    float64 `json:"location_score"`
	DescriptionScore float64 `json:"description_score"`
}

// Result is the immutable outcome of one verification call. It always
// carries Confidence, Verified, and Status, even on degraded paths.
type Result struct {
	FinalConfidence float64           `json:"final_confidence"`
	Verified        bool              `json:"verified"`
	Status          Status            `json:"status"`
	Resolution      ResolutionProfile `json:"resolution"`
	Weights         WeightProfile     `json:"weights"`
	Breakdown       ScoreComponents   `json:"breakdown"`
	AnalysisText    string            `json:"analysis_text,omitempty"`
	GaitSignature   string            `json:"gait_signature,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Fuse combines the sub-scores under the given policy and resolution
// profile. It is pure: identical inputs always produce identical output.
func Fuse(components ScoreComponents, profile ResolutionProfile, policy Policy) Result {
	weights := WeightsFor(policy, profile)
	context := components.LocationScore
	if policy == PolicyLegacy {
		context = (components.LocationScore + components.DescriptionScore) / 2
	}
	confidence := components.VisionConfidence*weights.Vision +
		components.GaitScore*weights.Gait +
		context*weights.Context
	confidence = math.Round(confidence*10) / 10

	return Result{
		FinalConfidence: confidence,
		Verified:        confidence > verifiedThreshold,
		Status:          statusFor(confidence),
		Resolution:      profile,
		Weights:         weights,
		Breakdown:       components,
	}
}

func statusFor(confidence float64) Status {
	switch {
	case confidence > strongThreshold:
		return StatusVerified
	case confidence > probableThreshold:
		return StatusProbable
	default:
		return StatusUnverified
	}
}

// FailClosed is the terminal degraded outcome used when no evidence can be
// evaluated at all. Verification prefers a false negative over a false
// positive when data is absent.
func FailClosed(message string) Result {
	return Result{
		FinalConfidence: 0.0,
		Verified:        false,
		Status:          StatusUnverified,
		Resolution:      LowRes,
		Weights:         WeightsFor(PolicyResolution, LowRes),
		Error:           message,
	}
}
