// Package influx is the InfluxDB 3 side of the writer.
package influx

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"

	"us-ingest/internal/writer"
)

// Config holds the connection settings for one database.
type Config struct {
	Host     string
	Token    string
	Database string
}

// Store writes line protocol batches to a database.
type Store struct {
	client   *influxdb3.Client
	database string
}

// Open creates the client. No request is sent until the first Write.
func Open(cfg Config) (*Store, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("influx: host and database are required")
	}
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.Host,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("influx: create client: %w", err)
	}
	return &Store{client: client, database: cfg.Database}, nil
}

// Write sends one batch. Rejections the server will repeat are marked
// permanent so the writer does not retry them.
func (s *Store) Write(ctx context.Context, data []byte) error {
	if err := s.client.Write(ctx, data); err != nil {
		return classify(fmt.Errorf("influx: write %d bytes to %s: %w", len(data), s.database, err))
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func classify(err error) error {
	var se *influxdb3.ServerError
	if !errors.As(err, &se) {
		return err
	}
	if permanentStatus(se.StatusCode) {
		return writer.Permanent(err)
	}
	return err
}

func permanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusRequestEntityTooLarge,
		http.StatusUnprocessableEntity:
		return true
	}
	return false
}
