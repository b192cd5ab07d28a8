// Package files reads per-ticker snapshot files from a local directory.
package files

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"us-ingest/internal/model"
)

// Provider reads every regular, non-hidden file in Dir as a parquet
// snapshot. The ticker is the file name up to the first '_'.
type Provider struct {
	Dir string
	// Concurrency bounds the files read at once. Zero means GOMAXPROCS.
	Concurrency int
}

func NewProvider(dir string) *Provider {
	return &Provider{Dir: dir}
}

func (p *Provider) GetName() string {
	return "Files"
}

// Records returns the rows of all files, file by file in directory order.
// The first unreadable file fails the whole call.
func (p *Provider) Records(ctx context.Context) ([]model.Record, error) {
	names, err := p.list()
	if err != nil {
		return nil, err
	}
	slog.Info("reading snapshot files", "dir", p.Dir, "files", len(names))

	limit := p.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	perFile := make([][]model.Record, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := readFile(filepath.Join(p.Dir, name), Ticker(name))
			if err != nil {
				return err
			}
			perFile[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, rs := range perFile {
		total += len(rs)
	}
	records := make([]model.Record, 0, total)
	for _, rs := range perFile {
		records = append(records, rs...)
	}
	return records, nil
}

func (p *Provider) Close() error {
	return nil
}

// list returns the snapshot file names sorted by name.
func (p *Provider) list() ([]string, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", p.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Ticker extracts the ticker from a snapshot file name, e.g.
// "AAPL_2024-01-02.parquet" gives "AAPL". A name without '_' is used whole.
func Ticker(name string) string {
	name = filepath.Base(name)
	ticker, _, _ := strings.Cut(name, "_")
	return ticker
}

func readFile(path, ticker string) ([]model.Record, error) {
	rows, err := parquet.ReadFile[model.Snapshot](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	records := make([]model.Record, len(rows))
	for i, row := range rows {
		records[i] = row.Record(ticker)
	}
	return records, nil
}
