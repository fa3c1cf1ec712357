package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Provider   ProviderConfig   `yaml:"provider" mapstructure:"provider"`
	Groq       GroqConfig       `yaml:"groq" mapstructure:"groq"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Villages   VillagesConfig   `yaml:"villages" mapstructure:"villages"`
	Trust      TrustConfig      `yaml:"trust" mapstructure:"trust"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the audit ledger backend.
type StoreConfig struct {
	// Backend selects the ledger store: sqlite, postgres, or memory.
	Backend     string `yaml:"backend" mapstructure:"backend"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProviderConfig selects the external scoring provider.
type ProviderConfig struct {
	// Name is groq, anthropic, or none. With none (or a missing API key)
	// every operation runs on the deterministic path.
	Name               string `yaml:"name" mapstructure:"name"`
	AttemptTimeoutSecs int    `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
}

// GroqConfig holds Groq API settings.
type GroqConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	VisionModel  string  `yaml:"vision_model" mapstructure:"vision_model"`
	TextModel    string  `yaml:"text_model" mapstructure:"text_model"`
	RequestsPerS float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// VillagesConfig points at the village seed registry.
type VillagesConfig struct {
	SeedPath string `yaml:"seed_path" mapstructure:"seed_path"`
}

// TrustConfig points at the rating policy. An empty path means the
// built-in default policy.
type TrustConfig struct {
	PolicyPath string `yaml:"policy_path" mapstructure:"policy_path"`
}

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxAttempts         int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier          float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction      float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	CircuitFailures     int     `yaml:"circuit_failures" mapstructure:"circuit_failures"`
	CircuitResetSecs    int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
	DLQReplayIntervalMs int     `yaml:"dlq_replay_interval_ms" mapstructure:"dlq_replay_interval_ms"`
}

// MonitoringConfig configures the periodic health checker and alert webhook.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	UnrecordedThreshold   int     `yaml:"unrecorded_threshold" mapstructure:"unrecorded_threshold"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SANSURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.sqlite_path", "sansure.db")
	v.SetDefault("provider.name", "groq")
	v.SetDefault("provider.attempt_timeout_secs", 20)
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.vision_model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("groq.text_model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("groq.requests_per_sec", 2.0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("villages.seed_path", "villages.yaml")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 8000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.2)
	v.SetDefault("retry.circuit_failures", 5)
	v.SetDefault("retry.circuit_reset_secs", 30)
	v.SetDefault("retry.dlq_replay_interval_ms", 60000)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.5)
	v.SetDefault("monitoring.unrecorded_threshold", 1)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given run mode. Provider API
// keys are deliberately not required: a missing key just means every
// operation runs deterministically.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Backend {
	case "memory", "sqlite", "postgres":
	default:
		problems = append(problems, "store.backend must be memory, sqlite, or postgres")
	}
	if c.Store.Backend == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres backend")
	}
	if c.Store.Backend == "sqlite" && c.Store.SQLitePath == "" {
		problems = append(problems, "store.sqlite_path is required for the sqlite backend")
	}

	switch c.Provider.Name {
	case "groq", "anthropic", "none":
	default:
		problems = append(problems, "provider.name must be groq, anthropic, or none")
	}

	if c.Monitoring.FallbackRateThreshold < 0 || c.Monitoring.FallbackRateThreshold > 1 {
		problems = append(problems, "monitoring.fallback_rate_threshold must be between 0 and 1")
	}

	switch mode {
	case "cli":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Monitoring.CheckIntervalSecs <= 0 {
			problems = append(problems, "monitoring.check_interval_secs must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
