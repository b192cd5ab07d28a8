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
	job, cleanup, err := InitializeFilesJob()
	if err != nil {
		slog.Error("failed to initialize file job", "error", err)
		os.Exit(1)
	}

	cfg := job.Runner.Config
	slog.SetDefault(slogx.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))
	slog.Info("using data provider", "provider", job.Runner.Source.GetName(), "dir", cfg.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = job.Run(ctx)
	stop()
	cleanup()
	if err != nil {
		slog.Error("file ingest failed", "error", err)
		os.Exit(1)
	}
}
