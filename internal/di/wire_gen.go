//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

// This file is maintained by hand in the shape wire emits for wire.go.
// Running go generate replaces it; keep the provider order identical to
// the build call in wire.go when editing either.

package di

import (
	"QullaScan/pkg/config"
	"QullaScan/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := ProvideLogger(cfg, producer)
	if err != nil {
		return nil, err
	}
	metrics := ProvideMetrics()
	redisCache := ProvideRedisCache(cfg)
	fallbackCache := ProvideFallbackCache(cfg, redisCache, metrics, logger)
	store := ProvideSymbolStore(cfg, fallbackCache, logger)
	client := ProvideMarketData(cfg, metrics, logger)
	enrichmentProvider := ProvideEnrichment(cfg, metrics, logger)
	resolver := ProvideUniverse(cfg, fallbackCache, metrics, logger)
	scanner := ProvideScanner(cfg, client, enrichmentProvider, metrics, logger)
	eventPublisher := ProvidePublisher(cfg, producer)
	clickhouseClient, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	snapshotStore, err := ProvideSnapshotStore(clickhouseClient, logger)
	if err != nil {
		return nil, err
	}
	memoryQueue := ProvideQueue(cfg, logger)
	revalidator := ProvideRevalidator(cfg, store, scanner, eventPublisher, memoryQueue, metrics, logger)
	scanOrchestrator := ProvideOrchestrator(cfg, resolver, store, scanner, revalidator, eventPublisher, snapshotStore, metrics, logger)
	warmer := ProvideWarmer(cfg, scanOrchestrator, logger)
	consumer, err := ProvideKafkaConsumer(cfg, revalidator, metrics, logger)
	if err != nil {
		return nil, err
	}
	scannerEchoHandler := ProvideHTTPHandler(scanOrchestrator, revalidator, fallbackCache, redisCache, snapshotStore, client, logger)
	httpServer := ProvideHTTPServer(cfg, scannerEchoHandler, logger)
	app := ProvideApp(cfg, logger, httpServer, memoryQueue, warmer, scanOrchestrator, consumer, eventPublisher, clickhouseClient, fallbackCache, redisCache)
	return app, nil
}
