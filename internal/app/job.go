package app

import (
	"context"
	"log/slog"
	"time"

	"us-ingest/internal/ledger"
	"us-ingest/internal/model"
	"us-ingest/internal/pipeline"
	"us-ingest/internal/provider"
	"us-ingest/internal/saver"
	"us-ingest/internal/writer"
)

// Runner runs one pipeline and records its outcome in the ledger and the
// run report.
type Runner struct {
	Config *Config
	Source provider.DataProvider
	Open   pipeline.OpenStore
	Ledger *ledger.Ledger // nil when LEDGER_PATH is empty
}

// DailyJob ingests yesterday's grouped daily bars.
type DailyJob struct {
	Runner   *Runner
	Day      TradingDay
	Calendar *TradingCalendar
	Saver    saver.PacketSaver // nil when ARCHIVE_FORMAT is empty
}

// Run skips non-trading days when configured, otherwise fetches, archives
// and writes the day.
func (j *DailyJob) Run(ctx context.Context) error {
	cfg := j.Runner.Config
	if cfg.SkipNonTradingDays && !j.Calendar.IsTradingDay(j.Day) {
		slog.Info("not a trading day, nothing to ingest", "date", j.Day.String())
		return nil
	}
	slog.Info("daily ingest", "date", j.Day.String(), "source", j.Runner.Source.GetName())

	var archive func([]model.Record) error
	if j.Saver != nil {
		archive = func(records []model.Record) error {
			paths, err := saver.SaveByTicker(j.Saver, cfg.ArchiveDir, j.Day.Date, records)
			slog.Info("archived", "dir", cfg.ArchiveDir, "files", len(paths), "format", j.Saver.Extension())
			return err
		}
	}
	return j.Runner.Run(ctx, JobDaily, archive)
}

// FilesJob ingests every snapshot file in the data directory.
type FilesJob struct {
	Runner *Runner
}

func (j *FilesJob) Run(ctx context.Context) error {
	slog.Info("file ingest", "dir", j.Runner.Config.DataDir)
	return j.Runner.Run(ctx, JobFiles, nil)
}

// Run executes the pipeline. Only source, mapping and store errors are
// returned; batch failures end up in the ledger and the report.
func (r *Runner) Run(ctx context.Context, job Job, archive func([]model.Record) error) error {
	cfg := r.Config
	defer func() {
		if err := r.Source.Close(); err != nil {
			slog.Warn("close source", "error", err)
		}
	}()
	r.logPreviousRun(job)

	report := RunReport{Job: job, Source: r.Source.GetName(), StartedAt: time.Now().UTC()}
	listeners := writer.Listeners{writer.LogListener{}}
	var rec *ledger.Recorder
	if r.Ledger != nil {
		var err error
		if rec, err = r.Ledger.Start(ctx, string(job), report.Source); err != nil {
			slog.Warn("ledger unavailable for this run", "error", err)
		} else {
			report.RunID = rec.RunID
			listeners = append(listeners, rec)
		}
	}

	p := &pipeline.Pipeline{
		Source:   r.Source,
		Open:     r.Open,
		Options:  cfg.Writer,
		Listener: listeners,
		Archive:  archive,
	}
	summary, err := p.Run(ctx)
	report.Summary = summary
	report.FinishedAt = time.Now().UTC()

	// The run context may be cancelled by now.
	bg := context.WithoutCancel(ctx)
	if rec != nil {
		var lerr error
		if err != nil && summary.Points == 0 {
			lerr = rec.Abort(bg)
		} else {
			lerr = rec.Finish(bg, summary)
		}
		if lerr != nil {
			slog.Warn("ledger update failed", "error", lerr)
		}
	}
	if err != nil {
		report.Error = err.Error()
	}
	if cfg.ReportDir != "" {
		if _, rerr := WriteRunReport(cfg.ReportDir, report); rerr != nil {
			slog.Warn("run report failed", "error", rerr)
		}
	}
	return err
}

func (r *Runner) logPreviousRun(job Job) {
	if r.Config.ReportDir == "" {
		return
	}
	prev, err := ReadRunReport(r.Config.ReportDir)
	if err != nil || prev.Job != job {
		return
	}
	slog.Info("previous run", "run_id", prev.RunID, "status", prev.Status,
		"finished_at", prev.FinishedAt.Format(time.RFC3339), "points_written", prev.Summary.PointsWritten)
}
