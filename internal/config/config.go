package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	ListingBaseURL string `envconfig:"LISTING_BASE_URL" required:"true"`
	ListingPath    string `envconfig:"LISTING_PATH"`

	FixdatPath  string `envconfig:"FIXDAT_PATH" required:"true"`
	DownloadDir string `envconfig:"DOWNLOAD_DIR" required:"true"`

	StallTimeout     time.Duration `envconfig:"STALL_TIMEOUT" default:"60s"`
	ProgressInterval time.Duration `envconfig:"PROGRESS_INTERVAL" default:"1s"`
	MaxParallel      int           `envconfig:"MAX_PARALLEL" default:"1"`

	LogLevel   string `envconfig:"LOG_LEVEL" default:"INFO"`
	DBPath     string `envconfig:"DB_PATH" default:"outcomes.db"`
	WebhookURL string `envconfig:"WEBHOOK_URL"`

	Metrics struct {
		Enabled bool `split_words:"true" default:"true"`
	}

	Web struct {
		Enabled         bool          `split_words:"true" default:"true"`
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9190"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
