package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	DataDir    string `toml:"data_dir"`
	APIBind    string `toml:"api_bind"`
}

// Vision contains configuration for the vision/language model collaborator.
type Vision struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	EmbeddingModel    string `toml:"embedding_model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MockMode          bool   `toml:"mock_mode"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Gait contains configuration for posture/gait signature extraction.
type Gait struct {
	// Backend selects the landmark-extraction capability: "none" disables
	// pose extraction and forces the content-hash fallback.
	Backend string `toml:"backend"`
	// Seed drives the placeholder posture score source. Zero derives scores
	// from the signature hash instead.
	Seed int64 `toml:"seed"`
}

// Scoring contains configuration for the heuristic text scorers.
type Scoring struct {
	// TablesPath points at a YAML file carrying gazetteer sectors and
	// high-risk keywords. Empty uses the compiled-in tables.
	TablesPath string `toml:"tables_path"`
}

// Fusion contains configuration for the verification fusion engine.
type Fusion struct {
	// Policy selects the weighting scheme: "resolution" (canonical) or
	// "legacy" (fixed weights with averaged context).
	Policy string `toml:"policy"`
}

// Storage contains configuration for the optional object-storage collaborator.
type Storage struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
	Bucket   string `toml:"bucket"`
}

// Alerts contains configuration for ntfy push alerts.
type Alerts struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Search contains configuration for the semantic and network search features.
type Search struct {
	SemanticThreshold float64 `toml:"semantic_threshold"`
	SemanticLimit     int     `toml:"semantic_limit"`
	SweepConcurrency  int     `toml:"sweep_concurrency"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for khoj.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Vision: external vision/language model connection and mock mode
//   - Gait: posture signature extraction backend
//   - Scoring: gazetteer and risk-keyword tables
//   - Fusion: verification weighting policy
//   - Storage: optional object-storage upload of case photos
//   - Alerts: ntfy push alerts for verified sightings
//   - Search: semantic search thresholds and sweep parallelism
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Vision  Vision  `toml:"vision"`
	Gait    Gait    `toml:"gait"`
	Scoring Scoring `toml:"scoring"`
	Fusion  Fusion  `toml:"fusion"`
	Storage Storage `toml:"storage"`
	Alerts  Alerts  `toml:"alerts"`
	Search  Search  `toml:"search"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/khoj/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("khoj.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Scoring.TablesPath != "" {
		if c.Scoring.TablesPath, err = expandPath(c.Scoring.TablesPath); err != nil {
			return err
		}
	}
	c.Vision.APIKey = strings.TrimSpace(c.Vision.APIKey)
	c.Vision.BaseURL = strings.TrimSpace(c.Vision.BaseURL)
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	c.Vision.EmbeddingModel = strings.TrimSpace(c.Vision.EmbeddingModel)
	c.Fusion.Policy = strings.ToLower(strings.TrimSpace(c.Fusion.Policy))
	c.Gait.Backend = strings.ToLower(strings.TrimSpace(c.Gait.Backend))
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.DataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MockVision reports whether the vision collaborator runs in simulation
// mode: either explicitly requested or forced by an absent credential.
// Simulation is a first-class operating mode, not a test-only stub.
func (c *Config) MockVision() bool {
	return c.Vision.MockMode || c.Vision.APIKey == ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
