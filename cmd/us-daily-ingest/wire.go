//go:build wireinject
// +build wireinject

package main

import (
	"us-ingest/internal/app"
	"us-ingest/internal/provider"
	"us-ingest/internal/provider/polygon"

	"github.com/google/wire"
)

// InitializeDailyJob builds the daily job via Wire.
// Caller must call cleanup when done.
func InitializeDailyJob() (*app.DailyJob, func(), error) {
	wire.Build(
		app.ProvideDailyConfig,
		app.ProvideTradingDay,
		app.ProvideTradingCalendar,
		app.ProvidePolygonProvider,
		wire.Bind(new(provider.DataProvider), new(*polygon.Provider)),
		app.ProvidePacketSaver,
		app.ProvideLedger,
		app.ProvideStoreOpener,
		wire.Struct(new(app.Runner), "*"),
		wire.Struct(new(app.DailyJob), "*"),
	)
	return nil, nil, nil
}
