package provider

import (
	"time"

	"us-ingest/internal/provider/files"
	"us-ingest/internal/provider/polygon"
)

var (
	_ DataProvider = (*polygon.Provider)(nil)
	_ DataProvider = (*files.Provider)(nil)
)

// NewPolygonProvider creates a DataProvider backed by the grouped daily endpoint for date.
func NewPolygonProvider(baseURL, apiKey string, date time.Time, tickers []string) *polygon.Provider {
	client := polygon.NewClient(polygon.ClientConfig{BaseURL: baseURL, APIKey: apiKey})
	return polygon.NewProvider(client, date, tickers)
}

// NewFilesProvider creates a DataProvider reading the snapshot files in dir.
func NewFilesProvider(dir string) *files.Provider {
	return files.NewProvider(dir)
}
