package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"khoj/internal/alerts"
	"khoj/internal/analysis"
	"khoj/internal/api"
	"khoj/internal/config"
	"khoj/internal/daemon"
	"khoj/internal/gait"
	"khoj/internal/scoring"
	"khoj/internal/search"
	"khoj/internal/storage"
	"khoj/internal/testsupport"
	"khoj/internal/verification"
	"khoj/internal/vision"
)

type cliTestEnv struct {
	cfg        *config.Config
	addr       string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(homeDir, ".config", "khoj", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	analyzer := vision.New(cfg, nil)
	svc := api.NewCaseService(api.Deps{
		Store:    store,
		Analyzer: analyzer,
		Engine: verification.NewEngine(analyzer, gait.New(nil, cfg.Gait.Seed, nil),
			scoring.NewLocationScorer(scoring.DefaultTables()), verification.PolicyResolution, nil),
		Profiler: analysis.NewProfiler(analyzer, nil),
		Network:  search.NewNetwork(nil, cfg.Gait.Seed, cfg.Search.SweepConcurrency, nil),
		Semantic: search.NewSemantic(analyzer, store, cfg.Search.SemanticThreshold, cfg.Search.SemanticLimit, nil),
		Uploads:  storage.Disabled{},
		Alerts:   alerts.NewService(cfg),
	})

	d, err := daemon.New(cfg, store, svc, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		addr:       d.Addr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--addr", env.addr, "--config", env.configPath}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
staging_dir = %q
log_dir = %q
data_dir = %q
api_bind = %q

[vision]
mock_mode = true

[gait]
seed = %d
`,
		cfg.Paths.StagingDir,
		cfg.Paths.LogDir,
		cfg.Paths.DataDir,
		cfg.Paths.APIBind,
		cfg.Gait.Seed,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
