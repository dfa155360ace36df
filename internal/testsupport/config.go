package testsupport

import (
	"path/filepath"
	"testing"

	"khoj/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Vision runs in mock mode and gait scoring is seeded for reproducibility.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Vision.MockMode = true
	cfgVal.Gait.Seed = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithVisionKey sets a model credential and disables mock mode.
func WithVisionKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Vision.APIKey = key
		b.cfg.Vision.MockMode = false
	}
}

// WithFusionPolicy overrides the fusion weighting policy.
func WithFusionPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fusion.Policy = policy
	}
}
