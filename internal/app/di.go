package app

import (
	"fmt"
	"log/slog"
	"time"

	"us-ingest/internal/influx"
	"us-ingest/internal/ledger"
	"us-ingest/internal/pipeline"
	"us-ingest/internal/provider"
	"us-ingest/internal/provider/files"
	"us-ingest/internal/provider/polygon"
	"us-ingest/internal/saver"
)

// ProvideDailyConfig loads config for the daily job (for Wire).
func ProvideDailyConfig() (*Config, error) {
	return LoadConfig(JobDaily)
}

// ProvideFilesConfig loads config for the file job (for Wire).
func ProvideFilesConfig() (*Config, error) {
	return LoadConfig(JobFiles)
}

// ProvideTradingDay returns yesterday in exchange time (for Wire).
func ProvideTradingDay(cal *TradingCalendar) TradingDay {
	return cal.Yesterday(time.Now())
}

// ProvideTradingCalendar loads the XNYS calendar (for Wire).
func ProvideTradingCalendar() *TradingCalendar {
	return NewTradingCalendar()
}

// ProvidePolygonProvider creates the grouped daily source for day (for Wire).
// When TICKERS_FILE is set only the listed tickers are kept.
func ProvidePolygonProvider(cfg *Config, day TradingDay) (*polygon.Provider, error) {
	var tickers []string
	if cfg.TickersFile != "" {
		var err error
		if tickers, err = polygon.LoadTickersFromFile(cfg.TickersFile); err != nil {
			return nil, err
		}
	}
	return provider.NewPolygonProvider(cfg.PolygonBaseURL, cfg.PolygonAPIKey, day.Date, tickers), nil
}

// ProvideFilesProvider creates the snapshot directory source (for Wire).
func ProvideFilesProvider(cfg *Config) *files.Provider {
	return provider.NewFilesProvider(cfg.DataDir)
}

// ProvidePacketSaver creates the archive saver (for Wire). It returns nil
// when archiving is off and an error when the format is not supported.
func ProvidePacketSaver(cfg *Config) (saver.PacketSaver, error) {
	if cfg.ArchiveFormat == "" {
		return nil, nil
	}
	ps := saver.NewPacketSaver(cfg.ArchiveFormat)
	if ps == nil {
		return nil, fmt.Errorf("unsupported ARCHIVE_FORMAT %q (use: csv, parquet, json)", cfg.ArchiveFormat)
	}
	return ps, nil
}

// ProvideLedger opens the run ledger (for Wire). It returns nil when
// LEDGER_PATH is empty. The cleanup closes the database.
func ProvideLedger(cfg *Config) (*ledger.Ledger, func(), error) {
	if cfg.LedgerPath == "" {
		return nil, func() {}, nil
	}
	l, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, nil, err
	}
	return l, func() {
		if err := l.Close(); err != nil {
			slog.Warn("close ledger", "error", err)
		}
	}, nil
}

// ProvideStoreOpener returns the InfluxDB opener used by the pipeline (for Wire).
func ProvideStoreOpener(cfg *Config) pipeline.OpenStore {
	ic := influx.Config{Host: cfg.Influx.Host, Token: cfg.Influx.Token, Database: cfg.Influx.Database}
	return func() (pipeline.Store, error) {
		s, err := influx.Open(ic)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
