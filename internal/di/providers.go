package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	"QullaScan/internal/handler/api"
	internalrepo "QullaScan/internal/repository"
	"QullaScan/internal/service/enrichment"
	"QullaScan/internal/service/marketdata"
	"QullaScan/internal/service/swr"
	"QullaScan/internal/service/universe"
	"QullaScan/internal/services/scanner"
	"QullaScan/internal/usecase"
	"QullaScan/pkg/cache"
	pkgch "QullaScan/pkg/clickhouse"
	"QullaScan/pkg/config"
	xhttp "QullaScan/pkg/http"
	pkgkafka "QullaScan/pkg/kafka"
	"QullaScan/pkg/logger"
	"QullaScan/pkg/metrics"
	"QullaScan/pkg/queue"
	"QullaScan/pkg/server"
)

// symbolPrefix namespaces per-symbol cache keys.
const symbolPrefix = "stock"

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the root logger. With log.collect set and a producer
// available, aggregated errors are shipped to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collect && producer != nil {
		host, _ := os.Hostname()
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectInterval,
			CountThreshold: cfg.Log.CollectMax,
			Topic:          cfg.Kafka.Topics.Logs,
			Source:         "qullascan@" + host,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRedisCache creates the shared tier, or nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) *cache.RedisCache {
	if !cfg.Redis.Enabled {
		return nil
	}
	return cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.DialTimeout),
		cache.WithRedisDialTimeout(cfg.Redis.DialTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
}

// ProvideFallbackCache layers the in-process tier under Redis. The cache
// keeps serving from memory while Redis is down.
func ProvideFallbackCache(cfg *config.Config, rc *cache.RedisCache, m repository.Metrics, l *logger.Logger) *cache.FallbackCache {
	log := l.With("cache")
	var primary cache.Service
	if rc != nil {
		primary = rc
	}
	fc := cache.NewFallbackCache(primary,
		cache.WithFallbackMemory(
			cache.WithMemoryMaxSize(cfg.Redis.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Redis.MemoryCleanup),
		),
		cache.WithPingInterval(cfg.Redis.PingInterval),
		cache.WithAvailabilityHook(func(ok bool, err error) {
			m.SetRedisAvailable(ok)
			if ok {
				log.Info("redis available, shared cache in use")
				return
			}
			log.Warn("redis unavailable, serving from memory", logger.Error(err))
		}),
	)
	m.SetRedisAvailable(fc.Available())
	return fc
}

// ProvideSymbolStore creates the stale-while-revalidate store for records.
func ProvideSymbolStore(cfg *config.Config, fc *cache.FallbackCache, l *logger.Logger) *swr.Store[models.SymbolRecord] {
	return swr.NewStore[models.SymbolRecord](fc, symbolPrefix, l.With("swr"),
		swr.WithTTL[models.SymbolRecord](cfg.Scanner.SymbolTTL),
		swr.WithStaleAfter[models.SymbolRecord](cfg.Scanner.RevalidateAfter),
	)
}

// ProvideMarketData creates the chart API client.
func ProvideMarketData(cfg *config.Config, m repository.Metrics, l *logger.Logger) *marketdata.Client {
	mc := cfg.Providers.MarketData
	hc := xhttp.NewClient(
		xhttp.WithTimeout(mc.Timeout),
		xhttp.WithRetries(mc.Retries),
		xhttp.WithUserAgent(mc.UserAgent),
	)
	return marketdata.New(mc.BaseURL, hc, l,
		marketdata.WithConcurrency(mc.Concurrency),
		marketdata.WithRateLimit(mc.RatePerSec),
		marketdata.WithMetrics(m),
	)
}

// ProvideEnrichment creates the fundamentals client, or nil when disabled.
func ProvideEnrichment(cfg *config.Config, m repository.Metrics, l *logger.Logger) repository.EnrichmentProvider {
	ec := cfg.Providers.Enrichment
	if !ec.Enabled || ec.BaseURL == "" {
		return nil
	}
	hc := xhttp.NewClient(xhttp.WithTimeout(ec.Timeout), xhttp.WithRetries(ec.Retries))
	return enrichment.New(ec.BaseURL, hc, l,
		enrichment.WithConcurrency(ec.Concurrency),
		enrichment.WithCacheTTL(ec.CacheTTL),
		enrichment.WithMetrics(m),
	)
}

// ProvideUniverse creates the universe resolver chain.
func ProvideUniverse(cfg *config.Config, fc *cache.FallbackCache, m repository.Metrics, l *logger.Logger) *universe.Resolver {
	uc := cfg.Providers.Universe
	opts := []universe.Option{
		universe.WithStatic(uc.Symbols, uc.File),
		universe.WithTTL(cfg.Scanner.UniverseTTL),
	}
	if uc.ScreenerURL != "" && uc.APIKey != "" {
		hc := xhttp.NewClient(xhttp.WithTimeout(uc.Timeout))
		s := universe.NewScreener(uc.ScreenerURL, uc.APIKey, universe.ScreenerFilter{
			MinMarketCap: uc.MinMarketCap,
			MinVolume:    uc.MinVolume,
			MinPrice:     uc.MinPrice,
			Limit:        uc.Limit,
		}, hc, m)
		opts = append(opts, universe.WithScreener(s, uc.MinAccepted))
	}
	return universe.NewResolver(fc, l, opts...)
}

// ProvideScanner creates the per-symbol evaluator.
func ProvideScanner(cfg *config.Config, md *marketdata.Client, enr repository.EnrichmentProvider, m repository.Metrics, l *logger.Logger) *scanner.Scanner {
	return scanner.New(md, enr, scanner.Config{
		Benchmark:       cfg.Scanner.Benchmark,
		HistoryLookback: cfg.Scanner.HistoryLookback,
		MinBars:         cfg.Scanner.MinBars,
		ChartBars:       cfg.Scanner.ChartBars,
		EnrichBatch:     cfg.Providers.Enrichment.Concurrency,
		EnrichDelay:     cfg.Providers.Enrichment.BatchDelay,
	}, m, l)
}

// ProvidePublisher ships change events to Kafka, or drops them when Kafka is off.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return repository.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.SymbolUpdated, cfg.Kafka.Topics.ScanCompleted)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// archive is off.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClickHouse.DialTimeout+5*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSnapshotStore creates the scan archive and its table, or returns nil
// when ClickHouse is off.
func ProvideSnapshotStore(ch *pkgch.Client, l *logger.Logger) (repository.SnapshotStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSnapshotStore(ch, "", l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideQueue creates the in-process revalidation queue.
func ProvideQueue(cfg *config.Config, l *logger.Logger) *queue.MemoryQueue {
	return queue.NewMemoryQueue(l.With("queue"), &queue.QueueConfig{
		Workers:    cfg.Scanner.RevalidateWorkers,
		QueueSize:  cfg.Scanner.RevalidateQueue,
		RetryLimit: 1,
		RetryDelay: 5 * time.Second,
	})
}

// ProvideRevalidator creates the background refresher and binds it to q.
func ProvideRevalidator(
	cfg *config.Config,
	store *swr.Store[models.SymbolRecord],
	sc *scanner.Scanner,
	pub repository.EventPublisher,
	q *queue.MemoryQueue,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.Revalidator {
	r := usecase.NewRevalidator(store, sc, pub, m, l, usecase.RevalidatorConfig{
		BatchSize:  cfg.Scanner.RevalidateBatch,
		BatchDelay: cfg.Scanner.RevalidateDelay,
	})
	r.Attach(q)
	q.RegisterJob(r)
	return r
}

// ProvideOrchestrator creates the scan driver.
func ProvideOrchestrator(
	cfg *config.Config,
	u *universe.Resolver,
	store *swr.Store[models.SymbolRecord],
	sc *scanner.Scanner,
	reval *usecase.Revalidator,
	pub repository.EventPublisher,
	archive repository.SnapshotStore,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.ScanOrchestrator {
	return usecase.NewScanOrchestrator(u, store, sc, reval, pub, archive, m, l, usecase.OrchestratorConfig{
		BatchSize:   cfg.Scanner.BatchSize,
		BatchDelay:  cfg.Scanner.BatchDelay,
		LookupChunk: cfg.Scanner.CacheLookupChunk,
		EmitChunk:   cfg.Scanner.EmitChunk,
		ProxyMinRS:  cfg.Scanner.ProxyMinRS,
		Archive:     cfg.Scanner.ArchiveSnapshots && archive != nil,
	})
}

// ProvideWarmer creates the scheduled warm-up; a zero interval disables it.
func ProvideWarmer(cfg *config.Config, o *usecase.ScanOrchestrator, l *logger.Logger) *usecase.Warmer {
	return usecase.NewWarmer(o, cfg.Scanner.WarmInterval, l)
}

// ProvideKafkaConsumer consumes revalidate requests, or returns nil when
// Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, reval *usecase.Revalidator, m repository.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.Topics.Revalidate == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.LoggingHook{Log: l.With("kafka-hook"), Slow: 2 * time.Second},
	))
	consumer.RegisterHandler(usecase.NewKafkaRevalidateHandler(cfg.Kafka.Topics.Revalidate, reval, m, l))
	return consumer, nil
}

// ProvideHTTPHandler creates the scanner API with its health checks.
func ProvideHTTPHandler(
	o *usecase.ScanOrchestrator,
	reval *usecase.Revalidator,
	fc *cache.FallbackCache,
	rc *cache.RedisCache,
	archive repository.SnapshotStore,
	md *marketdata.Client,
	l *logger.Logger,
) *api.ScannerEchoHandler {
	var checks []api.HealthCheck
	if rc != nil {
		// memory keeps serving when redis is down, so it is not critical
		checks = append(checks, api.HealthCheck{Name: "redis", Check: fc.Ping})
	}
	if archive != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: archive.Health})
	}
	h := api.NewScannerEchoHandler(l, o, reval, checks...)
	h.SetNews(md)
	return h
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.ScannerEchoHandler, l *logger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowOrigins(cfg.Server.AllowOrigins),
		xhttp.WithMetrics(metricsPath, nil),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	httpServer *xhttp.Server,
	q *queue.MemoryQueue,
	warmer *usecase.Warmer,
	o *usecase.ScanOrchestrator,
	consumer *pkgkafka.Consumer,
	pub repository.EventPublisher,
	ch *pkgch.Client,
	fc *cache.FallbackCache,
	rc *cache.RedisCache,
) *server.App {
	return server.New(cfg, l, server.Components{
		HTTP:         httpServer,
		Queue:        q,
		Warmer:       warmer,
		Orchestrator: o,
		Consumer:     consumer,
		Publisher:    pub,
		ClickHouse:   ch,
		Cache:        fc,
		Redis:        rc,
	})
}
