// Package normalize turns heterogeneous bar records into a uniform table.
package normalize

import (
	"math"
	"sort"

	"us-ingest/internal/model"
)

// Zero is the value substituted for a missing field.
const Zero = float64(0)

// Columns returns the union of keys across records in first-seen order.
// Keys of a single record are visited in model field order first, then
// alphabetically, so the result is deterministic.
func Columns(records []model.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			cols = append(cols, k)
		}
	}
	for _, r := range records {
		for _, k := range knownFields {
			if _, ok := r[k]; ok {
				add(k)
			}
		}
		for _, k := range sortedKeys(r) {
			add(k)
		}
	}
	return cols
}

// Records returns a new sequence where every row carries every column and
// missing, nil or NaN values are replaced by Zero. The input is not modified.
// Output length and row order match the input.
func Records(records []model.Record) []model.Record {
	cols := Columns(records)
	out := make([]model.Record, len(records))
	for i, r := range records {
		row := make(model.Record, len(cols))
		for _, c := range cols {
			v, ok := r[c]
			if !ok || isNull(v) {
				v = Zero
			}
			row[c] = v
		}
		out[i] = row
	}
	return out
}

func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

var knownFields = []string{
	model.FieldTicker,
	model.FieldTimestamp,
	model.FieldOpen,
	model.FieldHigh,
	model.FieldLow,
	model.FieldClose,
	model.FieldVolume,
	model.FieldVWAP,
	model.FieldTransactions,
}

func sortedKeys(r model.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
