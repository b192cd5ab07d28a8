package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.polygon.io"

	groupedDailyPath = "/v2/aggs/grouped/locale/us/market/stocks/{date}"

	StatusOK      = "OK"
	StatusDelayed = "DELAYED"
)

// ClientConfig configures the HTTP side of the client. Zero values take
// the defaults below.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // default 2m
	RetryCount int           // default 3, negative disables retries
	RetryWait  time.Duration // default 15s, grows up to 4x
}

// Client calls the aggregates endpoints. Rate limiting (429), 5xx and
// network failures are retried by the transport.
type Client struct {
	http   *resty.Client
	apiKey string
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 15 * time.Second
	}

	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(max(cfg.RetryCount, 0)).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(4 * cfg.RetryWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: hc, apiKey: cfg.APIKey}
}

// GroupedDaily fetches the adjusted daily bar of every US stock for date.
// A DELAYED response is accepted as is.
func (c *Client) GroupedDaily(ctx context.Context, date time.Time) (*GroupedDailyResponse, error) {
	day := date.Format(time.DateOnly)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("date", day).
		SetQueryParams(map[string]string{
			"adjusted": "true",
			"apiKey":   c.apiKey,
		}).
		Get(groupedDailyPath)
	if err != nil {
		return nil, fmt.Errorf("grouped daily %s: %w", day, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("grouped daily %s: API status %d: %s", day, resp.StatusCode(), snippet(resp.Body()))
	}

	var result GroupedDailyResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("grouped daily %s: parse JSON: %w", day, err)
	}
	switch result.Status {
	case StatusOK, StatusDelayed:
		return &result, nil
	default:
		msg := result.Error
		if msg == "" {
			msg = result.Message
		}
		return nil, fmt.Errorf("grouped daily %s: API status not OK: %s %s", day, result.Status, msg)
	}
}

func snippet(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
