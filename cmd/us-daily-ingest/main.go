package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"us-ingest/internal/slogx"
)

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	job, cleanup, err := InitializeDailyJob()
	if err != nil {
		slog.Error("failed to initialize daily job", "error", err)
		os.Exit(1)
	}

	cfg := job.Runner.Config
	slog.SetDefault(slogx.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))
	slog.Info("using data provider", "provider", job.Runner.Source.GetName(), "date", job.Day.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = job.Run(ctx)
	stop()
	cleanup()
	if err != nil {
		slog.Error("daily ingest failed", "error", err)
		os.Exit(1)
	}
}
