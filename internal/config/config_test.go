package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.ServiceURL)
	assert.Equal(t, "/get-info", cfg.MetadataPath)
	assert.Equal(t, "/download", cfg.DownloadPath)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Web.Enabled)
	assert.Equal(t, "127.0.0.1:9092", cfg.Web.BindAddress)
	assert.Equal(t, 10*time.Second, cfg.Web.ShutdownTimeout)
	assert.Equal(t, 24*time.Hour, cfg.PartialRetention)

	n, err := cfg.ProgressLogBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), n)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVICE_URL", "https://grab.example.com")
	t.Setenv("OUTPUT_DIR", "/tmp/videos")
	t.Setenv("PROGRESS_LOG_INTERVAL", "1MiB")
	t.Setenv("WEB_ENABLED", "true")
	t.Setenv("WEB_BIND_ADDRESS", "0.0.0.0:8080")
	t.Setenv("TELEMETRY_OTLP_ENDPOINT", "collector:4317")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://grab.example.com", cfg.ServiceURL)
	assert.Equal(t, "/tmp/videos", cfg.OutputDir)
	assert.True(t, cfg.Web.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Web.BindAddress)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)

	n, err := cfg.ProgressLogBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), n)
}

func TestLoadConfig_InvalidProgressInterval(t *testing.T) {
	t.Setenv("PROGRESS_LOG_INTERVAL", "lots")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "PROGRESS_LOG_INTERVAL")
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}
