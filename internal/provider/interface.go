package provider

import (
	"context"

	"us-ingest/internal/model"
)

// DataProvider is the abstraction used by the application when accessing a data source.
// Implementations are responsible for their own fetching and resource cleanup.
type DataProvider interface {
	GetName() string
	// Records returns the full record set of one run.
	Records(ctx context.Context) ([]model.Record, error)
	Close() error
}
