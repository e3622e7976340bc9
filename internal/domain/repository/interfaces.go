package repository

import (
	"context"
	"errors"
	"time"

	"QullaScan/internal/domain/models"
)

var (
	// ErrSymbolNotFound is returned by providers that know the symbol does not exist.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrRateLimited marks a provider refusal caused by request quotas.
	ErrRateLimited = errors.New("provider rate limited")
)

// MarketDataProvider supplies quotes and daily history.
type MarketDataProvider interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	History(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
}

// EnrichmentProvider supplies optional fundamentals. A nil result with a nil
// error means the provider had nothing for the symbol.
type EnrichmentProvider interface {
	Fetch(ctx context.Context, symbol string) (*models.Enrichment, error)
}

// NewsProvider returns recent headlines for a symbol.
type NewsProvider interface {
	News(ctx context.Context, symbol string) ([]models.NewsItem, error)
}

// UniverseProvider lists the symbols a scan should cover.
type UniverseProvider interface {
	Symbols(ctx context.Context) ([]string, error)
}

// EventPublisher ships scanner events to downstream consumers.
type EventPublisher interface {
	PublishSymbolChange(ctx context.Context, change models.SymbolChange) error
	PublishScanCompleted(ctx context.Context, summary models.ScanSummary) error
	Close() error
}

// SnapshotStore archives scan results.
type SnapshotStore interface {
	Init(ctx context.Context) error // ensure tables
	StoreBatch(ctx context.Context, snaps []models.Snapshot) error
	History(ctx context.Context, symbol string, limit int) ([]models.Snapshot, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordSymbol(outcome string)
	RecordCacheLookup(result string)
	RecordScan(seconds float64, scanned, fromCache, fetched int)
	RecordProviderLatency(provider string, seconds float64, err error)
	RecordRevalidation(outcome string)
	SetRevalidationQueue(depth int)
	SetRedisAvailable(ok bool)
	RecordError(kind string)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) RecordSymbol(string)                          {}
func (NopMetrics) RecordCacheLookup(string)                     {}
func (NopMetrics) RecordScan(float64, int, int, int)            {}
func (NopMetrics) RecordProviderLatency(string, float64, error) {}
func (NopMetrics) RecordRevalidation(string)                    {}
func (NopMetrics) SetRevalidationQueue(int)                     {}
func (NopMetrics) SetRedisAvailable(bool)                       {}
func (NopMetrics) RecordError(string)                           {}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishSymbolChange(context.Context, models.SymbolChange) error { return nil }
func (NopPublisher) PublishScanCompleted(context.Context, models.ScanSummary) error { return nil }
func (NopPublisher) Close() error                                                   { return nil }
