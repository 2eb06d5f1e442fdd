// Package config loads the engine configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/exam-engine/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Serve      ServeConfig      `yaml:"serve" mapstructure:"serve"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProvidersConfig holds the per-backend credentials and model overrides.
type ProvidersConfig struct {
	Anthropic ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    ProviderConfig `yaml:"openai" mapstructure:"openai"`
	Gemini    ProviderConfig `yaml:"gemini" mapstructure:"gemini"`
}

// ProviderConfig holds one backend's API key and optional model override.
// A backend with no key is simply unavailable, never an error.
type ProviderConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// EngineConfig configures the consensus fan-out.
type EngineConfig struct {
	DeadlineSeconds int                `yaml:"deadline_seconds" mapstructure:"deadline_seconds"`
	RateLimits      map[string]float64 `yaml:"rate_limits" mapstructure:"rate_limits"`
	PolicyFile      string             `yaml:"policy_file" mapstructure:"policy_file"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServeConfig configures the HTTP API server.
type ServeConfig struct {
	Addr        string   `yaml:"addr" mapstructure:"addr"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// BatchConfig configures batch grading.
type BatchConfig struct {
	MaxConcurrentAnswers int `yaml:"max_concurrent_answers" mapstructure:"max_concurrent_answers"`
}

// NotionConfig holds Notion API credentials and the mark-sheet database ID.
type NotionConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	MarkSheetDB string `yaml:"mark_sheet_db" mapstructure:"mark_sheet_db"`
}

// MonitoringConfig configures the health checker thresholds.
type MonitoringConfig struct {
	IntervalMinutes  int     `yaml:"interval_minutes" mapstructure:"interval_minutes"`
	LookbackHours    int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	MaxDegradedRate  float64 `yaml:"max_degraded_rate" mapstructure:"max_degraded_rate"`
	MinAvgConfidence float64 `yaml:"min_avg_confidence" mapstructure:"min_avg_confidence"`
	MaxFailureRate   float64 `yaml:"max_failure_rate" mapstructure:"max_failure_rate"`
	DailyCostLimit   float64 `yaml:"daily_cost_limit_usd" mapstructure:"daily_cost_limit_usd"`
	WebhookURL       string  `yaml:"webhook_url" mapstructure:"webhook_url"`
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
	v.SetConfigName("exam-engine")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.exam-engine")

	// Environment
	v.SetEnvPrefix("EXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "exam-engine.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.cors_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_answers", 4)
	v.SetDefault("engine.deadline_seconds", 90)
	v.SetDefault("engine.rate_limits", map[string]float64{
		"anthropic": 2,
		"openai":    2,
		"gemini":    2,
	})
	v.SetDefault("monitoring.interval_minutes", 5)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.max_degraded_rate", 0.2)
	v.SetDefault("monitoring.min_avg_confidence", 0.5)
	v.SetDefault("monitoring.max_failure_rate", 0.5)
	v.SetDefault("monitoring.daily_cost_limit_usd", 50)

	// Registered with empty defaults so the EXAM_* env forms bind.
	for _, key := range []string{
		"providers.anthropic.api_key", "providers.anthropic.model",
		"providers.openai.api_key", "providers.openai.model",
		"providers.gemini.api_key", "providers.gemini.model",
		"engine.policy_file", "notion.token", "notion.mark_sheet_db",
		"monitoring.webhook_url",
	} {
		v.SetDefault(key, "")
	}

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

	if len(cfg.Pricing.Anthropic) == 0 && len(cfg.Pricing.OpenAI) == 0 && len(cfg.Pricing.Gemini) == 0 {
		cfg.Pricing = cost.DefaultRates()
	}

	return &cfg, nil
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
