package polygon

import (
	"github.com/guregu/null/v6"

	"us-ingest/internal/model"
)

// Agg is one ticker's bar in a grouped daily response. Any field may be
// absent; volume and transactions sometimes arrive as floats.
type Agg struct {
	Ticker       null.String `json:"T"`
	Timestamp    null.Int    `json:"t"` // Unix milliseconds
	Open         null.Float  `json:"o"`
	High         null.Float  `json:"h"`
	Low          null.Float  `json:"l"`
	Close        null.Float  `json:"c"`
	Volume       null.Float  `json:"v"`
	VWAP         null.Float  `json:"vw"`
	Transactions null.Float  `json:"n"`
	OTC          null.Bool   `json:"otc"`
}

// Record converts the aggregate to a record. Absent fields stay nil.
func (a Agg) Record() model.Record {
	return model.Record{
		model.FieldTicker:       value(a.Ticker.Ptr()),
		model.FieldTimestamp:    value(a.Timestamp.Ptr()),
		model.FieldOpen:         value(a.Open.Ptr()),
		model.FieldHigh:         value(a.High.Ptr()),
		model.FieldLow:          value(a.Low.Ptr()),
		model.FieldClose:        value(a.Close.Ptr()),
		model.FieldVolume:       value(a.Volume.Ptr()),
		model.FieldVWAP:         value(a.VWAP.Ptr()),
		model.FieldTransactions: value(a.Transactions.Ptr()),
		model.FieldOTC:          value(a.OTC.Ptr()),
	}
}

func value[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// GroupedDailyResponse is the body of the grouped daily aggregates endpoint.
type GroupedDailyResponse struct {
	Status       string `json:"status"`
	QueryCount   int    `json:"queryCount"`
	ResultsCount int    `json:"resultsCount"`
	Adjusted     bool   `json:"adjusted"`
	Results      []Agg  `json:"results"`
	RequestID    string `json:"request_id"`
	Error        string `json:"error,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Records converts every result, keeping response order.
func (r *GroupedDailyResponse) Records() []model.Record {
	records := make([]model.Record, 0, len(r.Results))
	for _, a := range r.Results {
		records = append(records, a.Record())
	}
	return records
}
