package polygon

import (
	"context"
	"log/slog"
	"time"

	"us-ingest/internal/model"
)

// Provider serves the grouped daily bars of one fixed date.
type Provider struct {
	client  *Client
	date    time.Time
	tickers map[string]bool
}

// NewProvider returns a provider for date. When tickers is non-empty only
// those tickers are kept.
func NewProvider(client *Client, date time.Time, tickers []string) *Provider {
	p := &Provider{client: client, date: date}
	if len(tickers) > 0 {
		p.tickers = make(map[string]bool, len(tickers))
		for _, t := range tickers {
			p.tickers[t] = true
		}
	}
	return p
}

func (p *Provider) GetName() string {
	return "Polygon"
}

// Date is the session the provider fetches.
func (p *Provider) Date() time.Time {
	return p.date
}

func (p *Provider) Records(ctx context.Context) ([]model.Record, error) {
	resp, err := p.client.GroupedDaily(ctx, p.date)
	if err != nil {
		return nil, err
	}
	if resp.Status == StatusDelayed {
		slog.Warn("grouped daily response is delayed", "date", p.date.Format(time.DateOnly))
	}
	records := resp.Records()
	if p.tickers == nil {
		return records, nil
	}
	kept := records[:0]
	for _, r := range records {
		if t, _ := r[model.FieldTicker].(string); p.tickers[t] {
			kept = append(kept, r)
		}
	}
	slog.Info("filtered grouped daily by ticker list", "kept", len(kept), "total", len(resp.Results))
	return kept, nil
}

func (p *Provider) Close() error {
	return nil
}
