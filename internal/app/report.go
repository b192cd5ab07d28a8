package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"us-ingest/internal/ledger"
	"us-ingest/internal/writer"
)

// ReportFile is the name of the last-run report inside the report dir.
const ReportFile = ".lastrun.json"

// RunReport is the content of ReportFile.
type RunReport struct {
	RunID      string         `json:"run_id"`
	Job        Job            `json:"job"`
	Source     string         `json:"source"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Summary    writer.Summary `json:"summary"`
	Error      string         `json:"error,omitempty"`
}

// WriteRunReport overwrites dir/.lastrun.json with r.
func WriteRunReport(dir string, r RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if r.Status == "" {
		r.Status = ledger.RunStatus(r.Summary)
		if r.Error != "" {
			r.Status = ledger.StatusFailed
		}
	}
	p := filepath.Join(dir, ReportFile)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("write report %s: %w", p, err)
	}
	slog.Info("report wrote", "path", p, "status", r.Status, "failed_batches", len(r.Summary.Failures))
	return p, nil
}

// ReadRunReport loads the report in dir.
func ReadRunReport(dir string) (*RunReport, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		return nil, err
	}
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
