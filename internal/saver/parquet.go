package saver

import (
	"github.com/parquet-go/parquet-go"

	"us-ingest/internal/model"
)

// ParquetSaver writes the model.Snapshot schema, which the file job reads back.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(rows []model.Snapshot, path string) error {
	return parquet.WriteFile(path, rows)
}
