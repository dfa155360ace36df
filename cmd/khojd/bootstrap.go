package main

import (
	"log/slog"
	"path/filepath"

	"khoj/internal/alerts"
	"khoj/internal/analysis"
	"khoj/internal/api"
	"khoj/internal/casestore"
	"khoj/internal/config"
	"khoj/internal/gait"
	"khoj/internal/scoring"
	"khoj/internal/search"
	"khoj/internal/storage"
	"khoj/internal/verification"
	"khoj/internal/vision"
)

// buildService wires the case service from configuration. Everything behind
// it degrades gracefully: simulated vision without a credential, hash-based
// gait without a pose backend, disabled storage without an endpoint.
func buildService(cfg *config.Config, store *casestore.Store, logger *slog.Logger) (*api.CaseService, error) {
	tables, err := loadScoringTables(cfg)
	if err != nil {
		return nil, err
	}

	analyzer := vision.New(cfg, logger)
	engine := verification.NewEngine(
		analyzer,
		gait.New(gaitBackend(cfg), cfg.Gait.Seed, logger),
		scoring.NewLocationScorer(tables),
		verification.Policy(cfg.Fusion.Policy),
		logger,
	)

	return api.NewCaseService(api.Deps{
		Store:       store,
		Analyzer:    analyzer,
		Engine:      engine,
		Profiler:    analysis.NewProfiler(analyzer, logger),
		Network:     search.NewNetwork(nil, cfg.Gait.Seed, cfg.Search.SweepConcurrency, logger),
		Semantic:    search.NewSemantic(analyzer, store, cfg.Search.SemanticThreshold, cfg.Search.SemanticLimit, logger),
		Uploads:     storage.NewClient(cfg),
		Alerts:      alerts.NewService(cfg),
		Logger:      logger,
		EvidenceDir: filepath.Join(cfg.Paths.DataDir, "evidence"),
	}), nil
}

func loadScoringTables(cfg *config.Config) (scoring.Tables, error) {
	if cfg.Scoring.TablesPath == "" {
		return scoring.DefaultTables(), nil
	}
	return scoring.LoadTables(cfg.Scoring.TablesPath)
}

func gaitBackend(cfg *config.Config) gait.PoseBackend {
	if cfg.Gait.Backend == "pose" {
		return gait.SidecarBackend{}
	}
	return nil
}
