package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Defaults for a run with no config file, flags or environment.
const (
	DefaultSourceURL     = "https://es.investing.com/equities/spotify-technology-historical-data"
	DefaultRawPath       = "data/raw_spotify_data.csv"
	DefaultProcessedPath = "data/processed_spotify_data.csv"
	DefaultParquetPath   = "data/processed_spotify_data.parquet"
	DefaultDatabasePath  = "db/spotify_stock.db"
	DefaultRequestDelay  = 2000
	DefaultTimeoutSec    = 10
)

// DefaultChallengeKeywords are matched case-insensitively against response bodies.
var DefaultChallengeKeywords = []string{"captcha", "just a moment"}

// Configuration validation errors.
var (
	ErrMissingSourceURL     = errors.New("source.url is required")
	ErrInvalidSourceURL     = errors.New("source.url must be an absolute http(s) URL")
	ErrInvalidTimeout       = errors.New("source.timeout_sec must be at least 1")
	ErrInvalidRequestDelay  = errors.New("source.request_delay must be non-negative")
	ErrMissingRawPath       = errors.New("output.raw_path is required")
	ErrMissingProcessedPath = errors.New("output.processed_path is required")
	ErrMissingParquetPath   = errors.New("output.parquet_path is required when parquet is enabled")
	ErrMissingDatabasePath  = errors.New("database.path is required")
)

// Config defines the application configuration structure
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
}

// SourceConfig defines where and how the historical table is fetched
type SourceConfig struct {
	URL               string   `mapstructure:"url"`
	Warmup            bool     `mapstructure:"warmup"`
	RequestDelay      int      `mapstructure:"request_delay"`
	TimeoutSec        int      `mapstructure:"timeout_sec"`
	ChallengeKeywords []string `mapstructure:"challenge_keywords"`
}

// OutputConfig defines the file snapshots written on each run
type OutputConfig struct {
	RawPath        string `mapstructure:"raw_path"`
	ProcessedPath  string `mapstructure:"processed_path"`
	ParquetEnabled bool   `mapstructure:"parquet_enabled"`
	ParquetPath    string `mapstructure:"parquet_path"`
}

// DatabaseConfig defines the SQLite target
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	cfg := Config{Source: SourceConfig{Warmup: true}}
	applyDefaults(&cfg)
	return cfg
}

// LoadConfig loads configuration from file and overrides with environment variables.
// A missing file is not an error; defaults and environment still apply.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STOCKETL")

	v.BindEnv("source.url", "STOCKETL_SOURCE_URL")
	v.BindEnv("source.warmup", "STOCKETL_WARMUP")
	v.BindEnv("source.request_delay", "STOCKETL_REQUEST_DELAY")
	v.BindEnv("source.timeout_sec", "STOCKETL_TIMEOUT_SEC")
	v.BindEnv("output.raw_path", "STOCKETL_RAW_PATH")
	v.BindEnv("output.processed_path", "STOCKETL_PROCESSED_PATH")
	v.BindEnv("output.parquet_enabled", "STOCKETL_PARQUET_ENABLED")
	v.BindEnv("output.parquet_path", "STOCKETL_PARQUET_PATH")
	v.BindEnv("database.path", "STOCKETL_DATABASE_PATH")

	// zero values can't tell "unset" from "false" for bools
	v.SetDefault("source.warmup", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("error reading config: %w", err)
		}
		log.Debug().Str("path", path).Msg("config file not found, using defaults and environment")
	} else {
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("loaded config file")
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for any config values not set from file or environment
func applyDefaults(cfg *Config) {
	if cfg.Source.URL == "" {
		cfg.Source.URL = DefaultSourceURL
	}
	if cfg.Source.RequestDelay == 0 {
		cfg.Source.RequestDelay = DefaultRequestDelay
	}
	if cfg.Source.TimeoutSec == 0 {
		cfg.Source.TimeoutSec = DefaultTimeoutSec
	}
	if len(cfg.Source.ChallengeKeywords) == 0 {
		cfg.Source.ChallengeKeywords = append([]string(nil), DefaultChallengeKeywords...)
	}

	if cfg.Output.RawPath == "" {
		cfg.Output.RawPath = DefaultRawPath
	}
	if cfg.Output.ProcessedPath == "" {
		cfg.Output.ProcessedPath = DefaultProcessedPath
	}
	if cfg.Output.ParquetPath == "" {
		cfg.Output.ParquetPath = DefaultParquetPath
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return ErrMissingSourceURL
	}

	u, err := url.Parse(c.Source.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidSourceURL, c.Source.URL)
	}

	if c.Source.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Source.RequestDelay < 0 {
		return ErrInvalidRequestDelay
	}

	if c.Output.RawPath == "" {
		return ErrMissingRawPath
	}

	if c.Output.ProcessedPath == "" {
		return ErrMissingProcessedPath
	}

	if c.Output.ParquetEnabled && c.Output.ParquetPath == "" {
		return ErrMissingParquetPath
	}

	if c.Database.Path == "" {
		return ErrMissingDatabasePath
	}

	return nil
}
