package saver

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"us-ingest/internal/model"
)

// PacketName returns "{TICKER}_{YYYY-MM-DD}.{ext}".
func PacketName(ticker string, day time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", ticker, day.Format(time.DateOnly), ext)
}

// SaveByTicker groups records by ticker and writes one packet per ticker
// into dir. It returns the paths written, in first-seen ticker order.
func SaveByTicker(s PacketSaver, dir string, day time.Time, records []model.Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir %s: %w", dir, err)
	}

	var order []string
	groups := make(map[string][]model.Snapshot)
	for _, r := range records {
		ticker, _ := r[model.FieldTicker].(string)
		if ticker == "" {
			continue
		}
		if _, ok := groups[ticker]; !ok {
			order = append(order, ticker)
		}
		groups[ticker] = append(groups[ticker], model.SnapshotFromRecord(r))
	}

	paths := make([]string, 0, len(order))
	for _, ticker := range order {
		path := filepath.Join(dir, PacketName(ticker, day, s.Extension()))
		if err := s.Save(groups[ticker], path); err != nil {
			return paths, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
