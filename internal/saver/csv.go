package saver

import (
	"encoding/csv"
	"os"
	"strconv"

	"us-ingest/internal/model"
)

// CSVSaver writes a header row then one row per snapshot. Missing values
// are written as empty cells.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(rows []model.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	header := []string{
		model.FieldTimestamp, model.FieldOpen, model.FieldHigh, model.FieldLow,
		model.FieldClose, model.FieldVolume, model.FieldVWAP, model.FieldTransactions,
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			intStr(r.Timestamp),
			floatStr(r.Open),
			floatStr(r.High),
			floatStr(r.Low),
			floatStr(r.Close),
			floatStr(r.Volume),
			floatStr(r.VWAP),
			intStr(r.Transactions),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func floatStr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func intStr(i *int64) string {
	if i == nil {
		return ""
	}
	return strconv.FormatInt(*i, 10)
}
