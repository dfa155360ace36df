package config

const (
	defaultStagingDir        = "~/.local/share/khoj/staging"
	defaultLogDir            = "~/.local/share/khoj/logs"
	defaultDataDir           = "~/.local/share/khoj/data"
	defaultAPIBind           = "127.0.0.1:7856"
	defaultVisionBaseURL     = "https://api.openai.com/v1"
	defaultVisionModel       = "gpt-4o-mini"
	defaultEmbeddingModel    = "text-embedding-3-small"
	defaultVisionTimeout     = 30
	defaultVisionRateLimit   = 20
	defaultGaitBackend       = "none"
	defaultFusionPolicy      = "resolution"
	defaultAlertTimeout      = 10
	defaultSemanticThreshold = 0.7
	defaultSemanticLimit     = 10
	defaultSweepConcurrency  = 4
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			DataDir:    defaultDataDir,
			APIBind:    defaultAPIBind,
		},
		Vision: Vision{
			BaseURL:           defaultVisionBaseURL,
			Model:             defaultVisionModel,
			EmbeddingModel:    defaultEmbeddingModel,
			TimeoutSeconds:    defaultVisionTimeout,
			RequestsPerMinute: defaultVisionRateLimit,
		},
		Gait: Gait{
			Backend: defaultGaitBackend,
		},
		Fusion: Fusion{
			Policy: defaultFusionPolicy,
		},
		Alerts: Alerts{
			RequestTimeout: defaultAlertTimeout,
		},
		Search: Search{
			SemanticThreshold: defaultSemanticThreshold,
			SemanticLimit:     defaultSemanticLimit,
			SweepConcurrency:  defaultSweepConcurrency,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
