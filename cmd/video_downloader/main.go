package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/italolelis/video_downloader/internal/config"
	"github.com/italolelis/video_downloader/internal/logctx"
	"github.com/italolelis/video_downloader/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logctx.WithLogger(ctx, logger)

	if err := run(ctx, cfg, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		DiskPath:       cfg.OutputDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to shutdown telemetry", "err", err)
		}
	}()

	logExtra := []any{"service_url", cfg.ServiceURL, "log_level", cfg.LogLevel}
	if cfg.Web.Enabled {
		logExtra = append(logExtra, "status_address", cfg.Web.BindAddress)
	}

	logger.Debug("video downloader starting", logExtra...)

	return newApp(cfg, tel).RunContext(ctx, args)
}
