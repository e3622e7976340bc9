//go:build wireinject
// +build wireinject

package di

import (
	"QullaScan/pkg/config"
	"QullaScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Transport and logging
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,

		// Cache tiers
		ProvideRedisCache,
		ProvideFallbackCache,
		ProvideSymbolStore,

		// Market data and scoring
		ProvideMarketData,
		ProvideEnrichment,
		ProvideUniverse,
		ProvideScanner,

		// Repositories
		ProvidePublisher,
		ProvideClickHouseClient,
		ProvideSnapshotStore,

		// Use cases
		ProvideQueue,
		ProvideRevalidator,
		ProvideOrchestrator,
		ProvideWarmer,
		ProvideKafkaConsumer,

		// HTTP
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
