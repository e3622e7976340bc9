package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"QullaScan/internal/domain/repository"
	"QullaScan/internal/usecase"
	"QullaScan/pkg/cache"
	pkgch "QullaScan/pkg/clickhouse"
	"QullaScan/pkg/config"
	xhttp "QullaScan/pkg/http"
	pkgkafka "QullaScan/pkg/kafka"
	applogger "QullaScan/pkg/logger"
	"QullaScan/pkg/queue"
)

// Components are the long-lived parts the App starts and stops. Consumer,
// ClickHouse and Redis may be nil when disabled.
type Components struct {
	HTTP         *xhttp.Server
	Queue        *queue.MemoryQueue
	Warmer       *usecase.Warmer
	Orchestrator *usecase.ScanOrchestrator
	Consumer     *pkgkafka.Consumer
	Publisher    repository.EventPublisher
	ClickHouse   *pkgch.Client
	Cache        *cache.FallbackCache
	Redis        *cache.RedisCache
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	l   *applogger.Logger
	c   Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, l: l.With("app"), c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down once ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(); err != nil {
		_ = a.shutdown()
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) start() error {
	// Revalidation workers first so the first scan can hand off stale symbols.
	if err := a.c.Queue.Start(); err != nil {
		return err
	}

	if err := a.c.Warmer.Start(); err != nil {
		a.l.Error("warmer start error", applogger.Error(err))
		return err
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.Topics.Revalidate))
	}

	if err := a.c.HTTP.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	a.l.Info("qullascan started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Bool("redis", a.c.Cache.Available()),
		applogger.Bool("kafka", a.c.Consumer != nil),
		applogger.Bool("clickhouse", a.c.ClickHouse != nil),
		applogger.Bool("warmer", a.c.Warmer.Enabled()))
	return nil
}

// shutdown stops producers of work before the stores they write to.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error

	a.c.Warmer.Stop()

	if err := a.c.HTTP.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	// Summaries and snapshots of finished scans go out before their sinks close.
	if a.c.Orchestrator != nil {
		if err := a.c.Orchestrator.Wait(ctx); err != nil {
			a.l.Warn("post-scan work incomplete", applogger.Error(err))
		}
	}

	// Drain queued revalidations within the shutdown budget.
	if err := a.c.Queue.Stop(ctx); err != nil {
		a.l.Warn("revalidation queue drain incomplete", applogger.Error(err))
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	// Flush aggregated logs while the producer is still open.
	a.l.RemoveCollector()

	if a.c.Publisher != nil {
		if err := a.c.Publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if err := a.c.Cache.Close(); err != nil {
		a.l.Warn("cache close error", applogger.Error(err))
	}
	if a.c.Redis != nil {
		if err := a.c.Redis.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
