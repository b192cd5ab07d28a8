package model

// Field names shared by every record source. A Record may carry more keys
// (for example "otc" on the remote path); only these are mapped to points.
const (
	FieldTicker       = "ticker"
	FieldTimestamp    = "timestamp"
	FieldOpen         = "open"
	FieldHigh         = "high"
	FieldLow          = "low"
	FieldClose        = "close"
	FieldVolume       = "volume"
	FieldVWAP         = "vwap"
	FieldTransactions = "transactions"
	FieldOTC          = "otc"
)

// Record is one ticker's bar for one session in record-oriented form.
// A missing key or a nil value means the source did not provide the field.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Snapshot is the on-disk parquet row of a per-ticker snapshot file.
// The ticker is not stored; it comes from the file name.
// Optional columns let files written by other tools omit fields.
type Snapshot struct {
	Timestamp    *int64   `parquet:"timestamp,optional" json:"timestamp"`
	Open         *float64 `parquet:"open,optional" json:"open"`
	High         *float64 `parquet:"high,optional" json:"high"`
	Low          *float64 `parquet:"low,optional" json:"low"`
	Close        *float64 `parquet:"close,optional" json:"close"`
	Volume       *float64 `parquet:"volume,optional" json:"volume"`
	VWAP         *float64 `parquet:"vwap,optional" json:"vwap"`
	Transactions *int64   `parquet:"transactions,optional" json:"transactions"`
}

// Record converts s to a Record tagged with ticker. Nil columns stay nil.
func (s Snapshot) Record(ticker string) Record {
	r := Record{FieldTicker: ticker}
	r[FieldTimestamp] = deref(s.Timestamp)
	r[FieldOpen] = deref(s.Open)
	r[FieldHigh] = deref(s.High)
	r[FieldLow] = deref(s.Low)
	r[FieldClose] = deref(s.Close)
	r[FieldVolume] = deref(s.Volume)
	r[FieldVWAP] = deref(s.VWAP)
	r[FieldTransactions] = deref(s.Transactions)
	return r
}

// deref returns *p, or an untyped nil so the normalizer sees a missing value.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
