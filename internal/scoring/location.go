// Package scoring derives contextual plausibility scores from the free-text
// fields of a sighting report. The heuristics are deliberately table driven so
// deployments can tune them for a region without recompiling.
package scoring

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"khoj/internal/services"
)

const (
	gazetteerScore  = 92.5
	baseScore       = 65.0
	keywordBonus    = 15.0
	shortPenalty    = 20.0
	minLocationText = 5

	minScore = 30.0
	maxScore = 98.0
)

// Tables holds the region-specific vocabulary consulted by the location
// scorer. Gazetteer entries are known hotspot localities that score highest
// outright; risk keywords mark generic high-traffic infrastructure.
type Tables struct {
	Gazetteer    []string `yaml:"gazetteer"`
	RiskKeywords []string `yaml:"risk_keywords"`
}

// DefaultTables returns the compiled-in vocabulary used when no tables file
// is configured.
func DefaultTables() Tables {
	return Tables{
		Gazetteer: []string{
			"chandni chowk",
			"karol bagh",
			"paharganj",
			"dharavi",
			"kurla west",
			"govandi",
			"shivajinagar",
			"yeshwanthpur",
		},
		RiskKeywords: []string{
			"station",
			"terminal",
			"bridge",
			"flyover",
			"slum",
			"dock",
		},
	}
}

// LoadTables reads a YAML tables file. A missing path yields the defaults.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, services.Wrap(services.ErrConfiguration, "scoring", "load tables", fmt.Sprintf("read %s", path), err)
	}
	var tables Tables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return Tables{}, services.Wrap(services.ErrConfiguration, "scoring", "load tables", fmt.Sprintf("parse %s", path), err)
	}
	defaults := DefaultTables()
	if len(tables.Gazetteer) == 0 {
		tables.Gazetteer = defaults.Gazetteer
	}
	if len(tables.RiskKeywords) == 0 {
		tables.RiskKeywords = defaults.RiskKeywords
	}
	return tables, nil
}

// LocationScorer rates how plausible a reported location is as a sighting
// site for a missing person.
type LocationScorer struct {
	tables Tables
}

// NewLocationScorer builds a scorer over the given tables.
func NewLocationScorer(tables Tables) *LocationScorer {
	normalized := Tables{
		Gazetteer:    make([]string, 0, len(tables.Gazetteer)),
		RiskKeywords: make([]string, 0, len(tables.RiskKeywords)),
	}
	for _, entry := range tables.Gazetteer {
		if entry = strings.ToLower(strings.TrimSpace(entry)); entry != "" {
			normalized.Gazetteer = append(normalized.Gazetteer, entry)
		}
	}
	for _, entry := range tables.RiskKeywords {
		if entry = strings.ToLower(strings.TrimSpace(entry)); entry != "" {
			normalized.RiskKeywords = append(normalized.RiskKeywords, entry)
		}
	}
	return &LocationScorer{tables: normalized}
}

// Score rates the raw location text on a 0-100 scale. Gazetteer localities
// score highest outright; otherwise the score starts from a neutral base,
// gains a single bonus when any risk keyword appears, and is penalized when
// the text is too short to mean anything. The result is clamped to
// [30.0, 98.0] except for the gazetteer fast path.
func (s *LocationScorer) Score(location string) float64 {
	lowered := strings.ToLower(strings.TrimSpace(location))
	for _, entry := range s.tables.Gazetteer {
		if strings.Contains(lowered, entry) {
			return gazetteerScore
		}
	}
	score := baseScore
	for _, keyword := range s.tables.RiskKeywords {
		if strings.Contains(lowered, keyword) {
			score += keywordBonus
			break
		}
	}
	if len(location) < minLocationText {
		score -= shortPenalty
	}
	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}
