package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	ServiceURL   string `envconfig:"SERVICE_URL" default:"http://localhost:5000"`
	MetadataPath string `envconfig:"METADATA_PATH" default:"/get-info"`
	DownloadPath string `envconfig:"DOWNLOAD_PATH" default:"/download"`
	Insecure     bool   `envconfig:"INSECURE_SKIP_VERIFY" default:"false"`

	OutputDir           string `envconfig:"OUTPUT_DIR" default:"."`
	ProgressLogInterval string `envconfig:"PROGRESS_LOG_INTERVAL" default:"5MB"`
	LogLevel            string `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL   string `envconfig:"DISCORD_WEBHOOK_URL"`

	// PartialRetention is how long an interrupted save's transient file is kept.
	PartialRetention time.Duration `envconfig:"PARTIAL_RETENTION" default:"24h"`

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"true"`
		ServiceName  string `split_words:"true" default:"video_downloader"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	}

	Web struct {
		Enabled         bool          `split_words:"true" default:"false"`
		BindAddress     string        `split_words:"true" default:"127.0.0.1:9092"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if _, err := cfg.ProgressLogBytes(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ProgressLogBytes parses PROGRESS_LOG_INTERVAL ("5MB", "512KiB", ...).
func (c *Config) ProgressLogBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.ProgressLogInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid PROGRESS_LOG_INTERVAL %q: %w", c.ProgressLogInterval, err)
	}

	return int64(n), nil
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
