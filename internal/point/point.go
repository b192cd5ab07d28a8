// Package point maps normalized bar records to InfluxDB points.
package point

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"

	"us-ingest/internal/model"
)

// Measurement is the measurement every StockPoint is written to.
const Measurement = "stocks"

// TimestampScale converts the source timestamp to the point timestamp.
// The factor is kept as the store's existing data was written with it.
const TimestampScale = 1_000_000

// ErrTimestampRange reports a source timestamp whose scaled value does not
// fit an int64 nanosecond count.
var ErrTimestampRange = errors.New("timestamp out of range")

// StockPoint is one bar as a time-series point tagged by ticker.
// It carries no low field.
type StockPoint struct {
	Ticker       string
	Timestamp    int64 // nanoseconds
	Open         float64
	High         float64
	Close        float64
	Volume       int64
	VWAP         float64
	Transactions int64
}

// Time returns the point timestamp as a time.Time.
func (p StockPoint) Time() time.Time {
	return time.Unix(0, p.Timestamp).UTC()
}

// MappingError reports the row and field that could not be converted.
type MappingError struct {
	Index int
	Field string
	Err   error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("record %d: field %q: %v", e.Index, e.Field, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// FromRecord maps a single normalized record.
func FromRecord(r model.Record) (StockPoint, error) {
	var p StockPoint
	var err error

	ticker, ok := r[model.FieldTicker].(string)
	if !ok || ticker == "" {
		return p, &MappingError{Field: model.FieldTicker, Err: fmt.Errorf("want non-empty string, got %T(%v)", r[model.FieldTicker], r[model.FieldTicker])}
	}
	p.Ticker = ticker

	if p.Timestamp, err = scaleTimestamp(r[model.FieldTimestamp]); err != nil {
		return p, &MappingError{Field: model.FieldTimestamp, Err: err}
	}

	floats := []struct {
		field string
		dst   *float64
	}{
		{model.FieldOpen, &p.Open},
		{model.FieldHigh, &p.High},
		{model.FieldClose, &p.Close},
		{model.FieldVWAP, &p.VWAP},
	}
	for _, f := range floats {
		if *f.dst, err = model.Float(r[f.field]); err != nil {
			return p, &MappingError{Field: f.field, Err: err}
		}
	}

	if p.Volume, err = model.Int(r[model.FieldVolume]); err != nil {
		return p, &MappingError{Field: model.FieldVolume, Err: err}
	}
	if p.Transactions, err = model.Int(r[model.FieldTransactions]); err != nil {
		return p, &MappingError{Field: model.FieldTransactions, Err: err}
	}
	return p, nil
}

// FromRecords maps every record, keeping order. The first failure aborts
// the pass and no points are returned.
func FromRecords(records []model.Record) ([]StockPoint, error) {
	points := make([]StockPoint, 0, len(records))
	for i, r := range records {
		p, err := FromRecord(r)
		if err != nil {
			if me, ok := err.(*MappingError); ok {
				me.Index = i
			}
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// scaleTimestamp applies TimestampScale before truncating, so fractional
// source timestamps keep their sub-unit part. Integer input stays exact.
func scaleTimestamp(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		return scaleFloat(x)
	case float32:
		return scaleFloat(float64(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return scaleInt(i)
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to timestamp", x.String())
		}
		return scaleFloat(f)
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return scaleInt(i)
		}
		f, err := model.Float(s)
		if err != nil {
			return 0, err
		}
		return scaleFloat(f)
	}
	i, err := model.Int(v)
	if err != nil {
		return 0, err
	}
	return scaleInt(i)
}

func scaleInt(ts int64) (int64, error) {
	if ts > math.MaxInt64/TimestampScale || ts < math.MinInt64/TimestampScale {
		return 0, fmt.Errorf("%w: %d", ErrTimestampRange, ts)
	}
	return ts * TimestampScale, nil
}

func scaleFloat(ts float64) (int64, error) {
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return 0, fmt.Errorf("cannot convert %v to timestamp", ts)
	}
	ns := ts * TimestampScale
	if ns >= math.MaxInt64 || ns < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v", ErrTimestampRange, ts)
	}
	return int64(ns), nil
}

// EncodeLines serializes points as line protocol with nanosecond precision.
func EncodeLines(points []StockPoint) ([]byte, error) {
	var enc lineprotocol.Encoder
	enc.SetPrecision(lineprotocol.Nanosecond)
	for i, p := range points {
		if p.Ticker == "" {
			return nil, fmt.Errorf("point %d: empty ticker", i)
		}
		enc.StartLine(Measurement)
		enc.AddTag("ticker", p.Ticker)
		if err := addFloat(&enc, "open", p.Open); err != nil {
			return nil, fmt.Errorf("point %d (%s): %w", i, p.Ticker, err)
		}
		if err := addFloat(&enc, "high", p.High); err != nil {
			return nil, fmt.Errorf("point %d (%s): %w", i, p.Ticker, err)
		}
		if err := addFloat(&enc, "close", p.Close); err != nil {
			return nil, fmt.Errorf("point %d (%s): %w", i, p.Ticker, err)
		}
		enc.AddField("volume", lineprotocol.IntValue(p.Volume))
		if err := addFloat(&enc, "vwap", p.VWAP); err != nil {
			return nil, fmt.Errorf("point %d (%s): %w", i, p.Ticker, err)
		}
		enc.AddField("transactions", lineprotocol.IntValue(p.Transactions))
		enc.EndLine(p.Time())
		if err := enc.Err(); err != nil {
			return nil, fmt.Errorf("point %d (%s): %w", i, p.Ticker, err)
		}
	}
	return enc.Bytes(), nil
}

func addFloat(enc *lineprotocol.Encoder, key string, f float64) error {
	v, ok := lineprotocol.FloatValue(f)
	if !ok {
		return fmt.Errorf("field %s: invalid float %v", key, f)
	}
	enc.AddField(key, v)
	return nil
}
