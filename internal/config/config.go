package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the pipeline service. Values come from an
// optional YAML file and BANKFLOW_-prefixed environment variables; env wins.
type Config struct {
	AppName     string `mapstructure:"app_name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	HTTPPort      string        `mapstructure:"http_port"`
	SourceTimeout time.Duration `mapstructure:"source_timeout"`

	Model    ModelConfig    `mapstructure:"model"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ModelConfig configures the completion service used for anomaly
// classification.
type ModelConfig struct {
	Name        string        `mapstructure:"name"`
	MaxTokens   int32         `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// PipelineConfig configures pipeline stage defaults.
type PipelineConfig struct {
	RequiredColumns     []string `mapstructure:"required_columns"`
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold"`
	SampleSize          int      `mapstructure:"sample_size"`
	SampleSeed          int64    `mapstructure:"sample_seed"`
}

// Load reads configuration from the given file path (may be empty) plus the
// environment and returns the resolved Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BANKFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "bankflow")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_port", "8080")
	v.SetDefault("source_timeout", 30*time.Second)

	v.SetDefault("model.name", "gemini-2.5-flash")
	v.SetDefault("model.max_tokens", 500)
	v.SetDefault("model.temperature", 0.3)
	v.SetDefault("model.call_timeout", 60*time.Second)

	v.SetDefault("pipeline.required_columns", []string{
		"transaction_id",
		"customer_id",
		"amount",
		"transaction_date",
		"status",
	})
	v.SetDefault("pipeline.confidence_threshold", 0.75)
	v.SetDefault("pipeline.sample_size", 100)
	v.SetDefault("pipeline.sample_seed", 42)
}

func validate(cfg *Config) error {
	if cfg.Pipeline.ConfidenceThreshold < 0 || cfg.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %v", cfg.Pipeline.ConfidenceThreshold)
	}
	if cfg.Pipeline.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive, got %d", cfg.Pipeline.SampleSize)
	}
	if len(cfg.Pipeline.RequiredColumns) == 0 {
		return fmt.Errorf("required_columns must not be empty")
	}
	return nil
}
