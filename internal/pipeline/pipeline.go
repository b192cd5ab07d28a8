// Package pipeline runs one ingestion: fetch records, normalize and map
// them to points, then write the points in batches.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"us-ingest/internal/model"
	"us-ingest/internal/normalize"
	"us-ingest/internal/point"
	"us-ingest/internal/provider"
	"us-ingest/internal/writer"
)

// Store is a write session. It is opened right before the write stage.
type Store interface {
	writer.Sink
	Close() error
}

// OpenStore opens a Store.
type OpenStore func() (Store, error)

// Pipeline wires a record source to a store.
type Pipeline struct {
	Source   provider.DataProvider
	Open     OpenStore
	Options  writer.Options
	Listener writer.Listener
	// Archive, when set, receives the normalized records before mapping.
	// Its error is logged and does not stop the run.
	Archive func(records []model.Record) error
}

// Run executes the stages in order. Source, mapping and store-open errors
// abort the run; failed batches only show up in the summary.
func (p *Pipeline) Run(ctx context.Context) (writer.Summary, error) {
	var summary writer.Summary
	source := p.Source.GetName()

	start := time.Now()
	slog.Info("fetch started", "source", source)
	raw, err := p.Source.Records(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch from %s: %w", source, err)
	}
	slog.Info("fetch done", "source", source, "records", len(raw), "elapsed", time.Since(start).Round(time.Millisecond))

	start = time.Now()
	slog.Info("conversion started", "records", len(raw))
	records := normalize.Records(raw)
	if p.Archive != nil && len(records) > 0 {
		if err := p.Archive(records); err != nil {
			slog.Warn("archive failed", "error", err)
		}
	}
	points, err := point.FromRecords(records)
	if err != nil {
		return summary, fmt.Errorf("map records: %w", err)
	}
	slog.Info("conversion done", "points", len(points), "elapsed", time.Since(start).Round(time.Millisecond))

	store, err := p.Open()
	if err != nil {
		return summary, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("close store", "error", err)
		}
	}()

	start = time.Now()
	slog.Info("write started", "points", len(points), "batch_size", p.Options.BatchSize, "workers", p.Options.Workers)
	summary, err = writer.WriteAll(ctx, store, p.Options, p.Listener, points)
	elapsed := time.Since(start).Round(time.Millisecond)

	attrs := []any{
		"points", summary.Points, "batches", summary.Batches, "succeeded", summary.Succeeded,
		"failed", summary.Failed, "retries", summary.Retries, "points_written", summary.PointsWritten,
		"points_lost", summary.PointsLost, "dropped", summary.Dropped, "elapsed", elapsed,
	}
	if summary.OK() {
		slog.Info("write done", attrs...)
	} else {
		slog.Warn("write done with failures", append(attrs, "reasons", summary.FailedReasons())...)
	}
	if err != nil {
		return summary, fmt.Errorf("write interrupted: %w", err)
	}
	return summary, nil
}
