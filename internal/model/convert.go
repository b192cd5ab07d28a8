package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Float coerces a record value to float64. Numeric text is parsed.
func Float(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float", x)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("value is missing")
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

// Int coerces a record value to int64, truncating any fractional part.
// Text must hold an integer.
func Int(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case float64:
		return truncate(x)
	case float32:
		return truncate(float64(x))
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to int", x.String())
		}
		return truncate(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to int", x)
		}
		return i, nil
	case nil:
		return 0, fmt.Errorf("value is missing")
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

func truncate(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("cannot convert %v to int", f)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

// SnapshotFromRecord builds the parquet row for a normalized record.
// Values that cannot be coerced are left nil.
func SnapshotFromRecord(r Record) Snapshot {
	var s Snapshot
	s.Timestamp = intPtr(r[FieldTimestamp])
	s.Open = floatPtr(r[FieldOpen])
	s.High = floatPtr(r[FieldHigh])
	s.Low = floatPtr(r[FieldLow])
	s.Close = floatPtr(r[FieldClose])
	s.Volume = floatPtr(r[FieldVolume])
	s.VWAP = floatPtr(r[FieldVWAP])
	s.Transactions = intPtr(r[FieldTransactions])
	return s
}

func floatPtr(v any) *float64 {
	f, err := Float(v)
	if err != nil {
		return nil
	}
	return &f
}

func intPtr(v any) *int64 {
	i, err := Int(v)
	if err != nil {
		return nil
	}
	return &i
}
