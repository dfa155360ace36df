package casestore

import "time"

// Person case statuses.
const (
	PersonMissing = "MISSING"
	PersonSighted = "SIGHTED"
	PersonFound   = "FOUND"
	PersonClosed  = "CLOSED"
)

// Search sweep states.
const (
	SearchIdle    = "IDLE"
	SearchRunning = "RUNNING"
	SearchDone    = "DONE"
)

// Person is one missing-person case record.
type Person struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Age                int       `json:"age"`
	Description        string    `json:"description"`
	LastSeenLocation   string    `json:"last_seen_location"`
	Contact            string    `json:"contact"`
	PhotoPath          string    `json:"photo_path,omitempty"`
	PhotoURL           string    `json:"photo_url,omitempty"`
	Status             string    `json:"status"`
	PredictedLocations []string  `json:"predicted_locations"`
	RiskFactors        []string  `json:"risk_factors"`
	SearchPriority     string    `json:"search_priority"`
	Narrative          string    `json:"narrative,omitempty"`
	Embedding          []float32 `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SightingReport is one citizen-submitted observation attached to a case.
type SightingReport struct {
	ID              int64     `json:"id"`
	PersonID        int64     `json:"person_id"`
	ReporterName    string    `json:"reporter_name"`
	ReporterContact string    `json:"reporter_contact"`
	LocationText    string    `json:"location_text"`
	DescriptionText string    `json:"description_text"`
	PhotoPath       string    `json:"photo_path,omitempty"`
	PhotoURL        string    `json:"photo_url,omitempty"`
	Embedding       []float32 `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// SearchStatus tracks the camera-network sweep progress for a case.
type SearchStatus struct {
	PersonID     int64     `json:"person_id"`
	State        string    `json:"state"`
	CamerasSwept int       `json:"cameras_swept"`
	MatchesFound int       `json:"matches_found"`
	LastSweepAt  string    `json:"last_sweep_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
