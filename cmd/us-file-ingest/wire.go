//go:build wireinject
// +build wireinject

package main

import (
	"us-ingest/internal/app"
	"us-ingest/internal/provider"
	"us-ingest/internal/provider/files"

	"github.com/google/wire"
)

// InitializeFilesJob builds the file job via Wire.
// Caller must call cleanup when done.
func InitializeFilesJob() (*app.FilesJob, func(), error) {
	wire.Build(
		app.ProvideFilesConfig,
		app.ProvideFilesProvider,
		wire.Bind(new(provider.DataProvider), new(*files.Provider)),
		app.ProvideLedger,
		app.ProvideStoreOpener,
		wire.Struct(new(app.Runner), "*"),
		wire.Struct(new(app.FilesJob), "*"),
	)
	return nil, nil, nil
}
