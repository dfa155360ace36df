package scoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocationScoreBase(t *testing.T) {
	scorer := NewLocationScorer(DefaultTables())
	if got := scorer.Score("Connaught Place, Delhi"); got != 65.0 {
		t.Fatalf("expected neutral base score 65.0, got %v", got)
	}
}

func TestLocationScoreRiskKeyword(t *testing.T) {
	scorer := NewLocationScorer(DefaultTables())
	if got := scorer.Score("Dadar Railway Station, Mumbai"); got != 80.0 {
		t.Fatalf("expected keyword bonus score 80.0, got %v", got)
	}
}

func TestLocationScoreKeywordBonusAppliedOnce(t *testing.T) {
	scorer := NewLocationScorer(DefaultTables())
	if got := scorer.Score("bridge near the station terminal"); got != 80.0 {
		t.Fatalf("keyword bonus must apply at most once, got %v", got)
	}
}

func TestLocationScoreGazetteer(t *testing.T) {
	scorer := NewLocationScorer(DefaultTables())
	for _, location := range []string{"Chandni Chowk", "CHANDNI CHOWK market lane", "dharavi"} {
		if got := scorer.Score(location); got != 92.5 {
			t.Fatalf("gazetteer locality %q scored %v, expected 92.5", location, got)
		}
	}
}

func TestLocationScoreShortText(t *testing.T) {
	scorer := NewLocationScorer(DefaultTables())
	if got := scorer.Score("CP"); got != 45.0 {
		t.Fatalf("short text should be penalized to 45.0, got %v", got)
	}
}

func TestLocationScoreClamp(t *testing.T) {
	scorer := NewLocationScorer(Tables{RiskKeywords: []string{"station"}})
	if got := scorer.Score("stn"); got < 30.0 || got > 98.0 {
		t.Fatalf("score %v escaped the [30, 98] range", got)
	}
}

func TestLoadTablesOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	contents := strings.Join([]string{
		"gazetteer:",
		"  - old quarter",
		"risk_keywords:",
		"  - wharf",
	}, "\n")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write tables: %v", err)
	}
	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	scorer := NewLocationScorer(tables)
	if got := scorer.Score("Old Quarter alley"); got != 92.5 {
		t.Fatalf("custom gazetteer entry scored %v", got)
	}
	if got := scorer.Score("fish market by the wharf"); got != 80.0 {
		t.Fatalf("custom risk keyword scored %v", got)
	}
	if got := scorer.Score("railway station platform"); got != 65.0 {
		t.Fatalf("default keywords should be replaced, got %v", got)
	}
}

func TestLoadTablesMissingPathUsesDefaults(t *testing.T) {
	tables, err := LoadTables("")
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	if len(tables.Gazetteer) == 0 || len(tables.RiskKeywords) == 0 {
		t.Fatal("expected compiled-in defaults")
	}
}

func TestDescriptionScore(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        float64
	}{
		{"sparse", "red shirt maybe", 40.0},
		{"rambling", strings.Repeat("word ", 60), 70.0},
		{"useful", strings.Repeat("word ", 20), 85.0},
		{"empty", "", 40.0},
		{"boundary low", strings.Repeat("word ", 5), 85.0},
		{"boundary high", strings.Repeat("word ", 50), 85.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DescriptionScore(tc.description); got != tc.want {
				t.Fatalf("DescriptionScore(%d words) = %v, want %v", len(strings.Fields(tc.description)), got, tc.want)
			}
		})
	}
}
