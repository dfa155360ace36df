package main

import (
	"os"
	"path/filepath"
	"testing"

	"khoj/internal/config"
	"khoj/internal/gait"
	"khoj/internal/scoring"
	"khoj/internal/testsupport"
)

func TestBuildService(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	svc, err := buildService(cfg, store, nil)
	if err != nil {
		t.Fatalf("buildService: %v", err)
	}
	if svc == nil {
		t.Fatal("expected a wired service")
	}
}

func TestGaitBackendSelection(t *testing.T) {
	cfg := config.Default()
	if backend := gaitBackend(&cfg); backend != nil {
		t.Fatalf("default backend should be nil, got %T", backend)
	}
	cfg.Gait.Backend = "pose"
	if _, ok := gaitBackend(&cfg).(gait.SidecarBackend); !ok {
		t.Fatal("pose backend should select the sidecar reader")
	}
}

func TestLoadScoringTables(t *testing.T) {
	cfg := config.Default()
	tables, err := loadScoringTables(&cfg)
	if err != nil {
		t.Fatalf("loadScoringTables: %v", err)
	}
	if len(tables.Gazetteer) != len(scoring.DefaultTables().Gazetteer) {
		t.Fatal("empty path should return the compiled-in tables")
	}

	path := filepath.Join(t.TempDir(), "tables.yaml")
	if err := os.WriteFile(path, []byte("gazetteer:\n  - test sector\n"), 0o644); err != nil {
		t.Fatalf("write tables: %v", err)
	}
	cfg.Scoring.TablesPath = path
	tables, err = loadScoringTables(&cfg)
	if err != nil {
		t.Fatalf("loadScoringTables with path: %v", err)
	}
	if len(tables.Gazetteer) != 1 || tables.Gazetteer[0] != "test sector" {
		t.Fatalf("tables = %+v", tables)
	}
}
