package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// BrowserConfig configures the headless browser session pool.
type BrowserConfig struct {
	PoolSize              int    `yaml:"pool_size" mapstructure:"pool_size"`
	NavigationTimeoutSecs int    `yaml:"navigation_timeout_secs" mapstructure:"navigation_timeout_secs"`
	ChromePath            string `yaml:"chrome_path" mapstructure:"chrome_path"`
	Headless              bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent             string `yaml:"user_agent" mapstructure:"user_agent"`
}

// NavigationTimeout returns the per-navigation deadline.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutSecs) * time.Second
}

// PipelineConfig configures coordinator behavior.
type PipelineConfig struct {
	ExtractionRetryLimit int `yaml:"extraction_retry_limit" mapstructure:"extraction_retry_limit"`
	ShutdownGraceSecs    int `yaml:"shutdown_grace_secs" mapstructure:"shutdown_grace_secs"`
}

// ShutdownGrace returns how long in-flight stage operations may run after
// a cancellation request before being abandoned.
func (c PipelineConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSecs) * time.Second
}

// GenerationConfig configures the LLM generation client.
type GenerationConfig struct {
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	Model            string  `yaml:"model" mapstructure:"model"`
	RetryLimit       int     `yaml:"retry_limit" mapstructure:"retry_limit"`
	RateLimitPerMin  float64 `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
	TruncationBudget int     `yaml:"truncation_budget" mapstructure:"truncation_budget"`
	MaxTokens        int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature      float64 `yaml:"temperature" mapstructure:"temperature"`
	SystemPrompt     string  `yaml:"system_prompt" mapstructure:"system_prompt"`
}

// ExportConfig configures output artifacts.
type ExportConfig struct {
	XLSXPath     string `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	DocumentsDir string `yaml:"documents_dir" mapstructure:"documents_dir"`
	ExcerptLen   int    `yaml:"excerpt_len" mapstructure:"excerpt_len"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("browser.pool_size", 3)
	v.SetDefault("browser.navigation_timeout_secs", 30)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (compatible; ProspectorBot/1.0)")
	v.SetDefault("pipeline.extraction_retry_limit", 3)
	v.SetDefault("pipeline.shutdown_grace_secs", 15)
	// Registered empty so AutomaticEnv picks the key up during Unmarshal.
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", "claude-haiku-4-5-20251001")
	v.SetDefault("generation.retry_limit", 2)
	v.SetDefault("generation.rate_limit_per_min", 30)
	v.SetDefault("generation.truncation_budget", 24000)
	v.SetDefault("generation.max_tokens", 2048)
	v.SetDefault("generation.temperature", 0.3)
	v.SetDefault("export.xlsx_path", "prospector_results.xlsx")
	v.SetDefault("export.documents_dir", "reports")
	v.SetDefault("export.excerpt_len", 200)
	v.SetDefault("store.path", "prospector.db")
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

	if cfg.Browser.PoolSize < 1 {
		return nil, eris.New("config: browser.pool_size must be >= 1")
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
