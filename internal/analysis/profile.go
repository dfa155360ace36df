// Package analysis produces the heuristic intake profile for a new missing
// person case: likely locations by age bracket, risk factors, and search
// priority. These are deterministic table lookups that seed the case record
// before any sighting arrives.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"khoj/internal/logging"
	"khoj/internal/vision"
)

// Search priorities.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
)

// Profile is the intake assessment attached to a freshly opened case.
type Profile struct {
	PredictedLocations []string `json:"predicted_locations"`
	RiskFactors        []string `json:"risk_factors"`
	SearchPriority     string   `json:"search_priority"`
	Narrative          string   `json:"narrative,omitempty"`
}

// Profiler derives intake profiles. The vision model supplies an optional
// narrative; everything else is local and never fails.
type Profiler struct {
	analyzer vision.Analyzer
	logger   *slog.Logger
}

// NewProfiler wires a profiler over the model collaborator.
func NewProfiler(analyzer vision.Analyzer, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Profiler{
		analyzer: analyzer,
		logger:   logger.With(logging.String(logging.FieldComponent, "analysis")),
	}
}

// PredictLocations maps an age bracket to the venue types where missing
// children of that bracket are most commonly found.
func PredictLocations(age int) []string {
	switch {
	case age < 8:
		return []string{"parks", "malls", "bus stops", "residential areas"}
	case age < 14:
		return []string{"schools", "railway stations", "markets", "construction sites", "bus terminals"}
	default:
		return []string{"railway stations", "internet cafes", "malls", "transport hubs"}
	}
}

// RiskFactors enumerates the vulnerability flags for a case.
func RiskFactors(age int, description string) []string {
	var factors []string
	if age < 12 {
		factors = append(factors, "High trafficking risk", "Vulnerable to exploitation")
	}
	if strings.Contains(strings.ToLower(description), "girl") {
		factors = append(factors, "Gender-based vulnerability")
	}
	factors = append(factors, "Risk increases with time")
	return factors
}

// SearchPriority classifies how urgently field resources should be directed.
func SearchPriority(age int) string {
	if age < 12 {
		return PriorityHigh
	}
	return PriorityMedium
}

// Intake builds the full profile for a new case. Model failures degrade to
// the table-driven profile without a narrative.
func (p *Profiler) Intake(ctx context.Context, name string, age int, description string) Profile {
	profile := Profile{
		PredictedLocations: PredictLocations(age),
		RiskFactors:        RiskFactors(age, description),
		SearchPriority:     SearchPriority(age),
	}
	prompt := fmt.Sprintf(
		"Draft a concise search strategy for a missing person case. Name: %s. Age: %d. Description: %s. Focus on likely movement patterns and the first 48 hours.",
		name, age, description)
	narrative, err := p.analyzer.GenerateText(ctx, prompt)
	if err != nil {
		p.logger.Warn("intake narrative unavailable", logging.Error(err))
		return profile
	}
	profile.Narrative = narrative
	return profile
}

// AgeProgression asks the model to describe expected appearance changes
// between the reference photo age and the target age.
func (p *Profiler) AgeProgression(ctx context.Context, name string, currentAge, targetAge int, description string) (string, error) {
	prompt := fmt.Sprintf(
		"Produce an age progression description for %s, last seen at age %d, projected to age %d. Known appearance: %s. Describe facial structure, build, and other features likely to change.",
		name, currentAge, targetAge, description)
	return p.analyzer.GenerateText(ctx, prompt)
}
