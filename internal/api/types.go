package api

import (
	"time"

	"khoj/internal/casestore"
	"khoj/internal/search"
	"khoj/internal/verification"
)

// Case describes a missing-person case in a transport-friendly format.
type Case struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Age                int      `json:"age"`
	Description        string   `json:"description"`
	LastSeenLocation   string   `json:"lastSeenLocation"`
	Contact            string   `json:"contact"`
	PhotoURL           string   `json:"photoUrl,omitempty"`
	Status             string   `json:"status"`
	PredictedLocations []string `json:"predictedLocations"`
	RiskFactors        []string `json:"riskFactors"`
	SearchPriority     string   `json:"searchPriority"`
	Narrative          string   `json:"narrative,omitempty"`
	CreatedAt          string   `json:"createdAt,omitempty"`
}

// Sighting pairs a stored report with its verification outcome.
type Sighting struct {
	ID              int64         `json:"id"`
	PersonID        int64         `json:"personId"`
	ReporterName    string        `json:"reporterName,omitempty"`
	LocationText    string        `json:"locationText"`
	DescriptionText string        `json:"descriptionText"`
	CreatedAt       string        `json:"createdAt,omitempty"`
	Verification    *Verification `json:"verification,omitempty"`
}

// Verification is the transport form of a fusion result.
type Verification struct {
	Confidence float64            `json:"confidence"`
	Verified   bool               `json:"verified"`
	Status     string             `json:"status"`
	Resolution string             `json:"resolution"`
	Weights    map[string]float64 `json:"weights"`
	Breakdown  map[string]float64 `json:"breakdown"`
	Analysis   string             `json:"analysis,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// CaseStatus aggregates everything a dashboard shows for one case.
type CaseStatus struct {
	Case         Case           `json:"case"`
	Sightings    int            `json:"sightings"`
	SearchState  string         `json:"searchState"`
	CamerasSwept int            `json:"camerasSwept"`
	MatchesFound int            `json:"matchesFound"`
	LastSweepAt  string         `json:"lastSweepAt,omitempty"`
	Matches      []search.Match `json:"matches,omitempty"`
}

// SearchResult is one semantic search hit.
type SearchResult struct {
	Case       Case    `json:"case"`
	Similarity float64 `json:"similarity"`
}

// CaseListResponse wraps a collection of cases for API responses.
type CaseListResponse struct {
	Cases []Case `json:"cases"`
}

// SightingListResponse wraps a collection of sightings.
type SightingListResponse struct {
	Sightings []Sighting `json:"sightings"`
}

// SearchResponse wraps semantic search hits.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SweepResponse reports the outcome of a camera sweep.
type SweepResponse struct {
	CamerasSwept int            `json:"camerasSwept"`
	Matches      []search.Match `json:"matches"`
}

// AgeProgressionResponse carries a generated appearance description.
type AgeProgressionResponse struct {
	PersonID    int64  `json:"personId"`
	TargetAge   int    `json:"targetAge"`
	Description string `json:"description"`
}

// FromPerson converts a stored case into its DTO.
func FromPerson(person *casestore.Person) Case {
	dto := Case{
		ID:                 person.ID,
		Name:               person.Name,
		Age:                person.Age,
		Description:        person.Description,
		LastSeenLocation:   person.LastSeenLocation,
		Contact:            person.Contact,
		PhotoURL:           person.PhotoURL,
		Status:             person.Status,
		PredictedLocations: person.PredictedLocations,
		RiskFactors:        person.RiskFactors,
		SearchPriority:     person.SearchPriority,
		Narrative:          person.Narrative,
	}
	if !person.CreatedAt.IsZero() {
		dto.CreatedAt = person.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// FromPersons converts a case listing.
func FromPersons(persons []*casestore.Person) []Case {
	cases := make([]Case, 0, len(persons))
	for _, person := range persons {
		cases = append(cases, FromPerson(person))
	}
	return cases
}

// FromReport converts a stored sighting report and its optional result.
func FromReport(report *casestore.SightingReport, result *verification.Result) Sighting {
	dto := Sighting{
		ID:              report.ID,
		PersonID:        report.PersonID,
		ReporterName:    report.ReporterName,
		LocationText:    report.LocationText,
		DescriptionText: report.DescriptionText,
	}
	if !report.CreatedAt.IsZero() {
		dto.CreatedAt = report.CreatedAt.Format(time.RFC3339)
	}
	if result != nil {
		converted := FromVerification(*result)
		dto.Verification = &converted
	}
	return dto
}

// FromVerification converts a fusion result into its DTO.
func FromVerification(result verification.Result) Verification {
	return Verification{
		Confidence: result.FinalConfidence,
		Verified:   result.Verified,
		Status:     string(result.Status),
		Resolution: string(result.Resolution),
		Weights: map[string]float64{
			"vision":  result.Weights.Vision,
			"gait":    result.Weights.Gait,
			"context": result.Weights.Context,
		},
		Breakdown: map[string]float64{
			"vision":      result.Breakdown.VisionConfidence,
			"gait":        result.Breakdown.GaitScore,
			"location":    result.Breakdown.LocationScore,
			"description": result.Breakdown.DescriptionScore,
		},
		Analysis: result.AnalysisText,
		Error:    result.Error,
	}
}
