// Package config loads the application configuration from environment
// variables, optionally layered over a YAML file. Environment values take
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix is the prefix for all environment variables, e.g.
// INVOICELENS_SERVER_PORT.
const envPrefix = "INVOICELENS"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"25"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

// AnalysisConfig contains the extraction and forecasting knobs.
type AnalysisConfig struct {
	// SheetName is the worksheet every invoice upload must contain.
	SheetName string `yaml:"sheet_name" envconfig:"SHEET_NAME" default:"analysis" validate:"required"`
	// ForecastPeriods is the number of future monthly periods to predict.
	ForecastPeriods int `yaml:"forecast_periods" envconfig:"FORECAST_PERIODS" default:"3" validate:"min=1,max=24"`
	// BatchWorkers bounds parallel file extraction in batch mode.
	// 1 keeps the sequential reference behavior.
	BatchWorkers int `yaml:"batch_workers" envconfig:"BATCH_WORKERS" default:"1" validate:"min=1,max=64"`
	// MaxUploadBytes caps the size of a single uploaded file.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"10485760" validate:"min=1"`
}

// PathsConfig contains file system paths.
type PathsConfig struct {
	// TemplateFile is the fixed-layout invoice template used for the
	// filled-template download. A missing template disables that download
	// but never aborts an analysis.
	TemplateFile string `yaml:"template_file" envconfig:"TEMPLATE_FILE" default:"template.xlsx"`
}

// Load reads configuration from the optional YAML file named by
// INVOICELENS_CONFIG_FILE, then applies environment overrides, then
// validates the result.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Default returns the configuration with all struct defaults applied and no
// environment or file input. Used by tests and the CLI.
func Default() *Config {
	var cfg Config
	// envconfig applies default tags even when no variables match the prefix.
	if err := envconfig.Process(envPrefix+"_DEFAULTS_ONLY", &cfg); err != nil {
		panic(err)
	}
	return &cfg
}
