package saver

import (
	"strings"

	"us-ingest/internal/model"
)

// PacketSaver writes one ticker's snapshot rows to a file.
// The daily job depends on this interface; the format is chosen at startup.
type PacketSaver interface {
	Save(rows []model.Snapshot, path string) error
	Extension() string
}

// NewPacketSaver creates an implementation by format (csv, parquet, json).
// Returns nil if format is not supported.
func NewPacketSaver(format string) PacketSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	case "json":
		return JSONSaver{}
	default:
		return nil
	}
}
