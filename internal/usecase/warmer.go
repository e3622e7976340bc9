package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"QullaScan/internal/domain/models"
	"QullaScan/pkg/logger"
)

// Scanner is what the warmer drives.
type Scanner interface {
	Scan(ctx context.Context, opts models.ScanOptions, out Emitter) (*models.ScanSummary, error)
}

// Warmer runs headless scans on a fixed interval so the first client scan
// after a quiet period is served from cache.
type Warmer struct {
	cron     *gocron.Scheduler
	scanner  Scanner
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWarmer returns a warmer; interval <= 0 disables it.
func NewWarmer(s Scanner, interval time.Duration, log *logger.Logger) *Warmer {
	ctx, cancel := context.WithCancel(context.Background())
	timeout := interval
	if timeout <= 0 || timeout > time.Hour {
		timeout = time.Hour
	}
	return &Warmer{
		cron:     gocron.NewScheduler(time.UTC),
		scanner:  s,
		interval: interval,
		timeout:  timeout,
		log:      log.With("warmer"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (w *Warmer) Enabled() bool { return w.interval > 0 }

// Start schedules the warm-up job. The first run starts immediately.
func (w *Warmer) Start() error {
	if !w.Enabled() {
		w.log.Info("scheduled warm-up disabled")
		return nil
	}
	if _, err := w.cron.Every(w.interval).Do(w.RunOnce); err != nil {
		return err
	}
	w.cron.StartAsync()
	w.log.Info("warmer started", logger.Duration("interval", w.interval))
	return nil
}

// RunOnce performs one headless scan unless one is already running.
func (w *Warmer) RunOnce() {
	if !w.running.CompareAndSwap(false, true) {
		w.log.Debug("warm-up still running, skipping tick")
		return
	}
	defer w.running.Store(false)

	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	sum, err := w.scanner.Scan(ctx, models.ScanOptions{Type: models.ScanAll}, Discard)
	if err != nil {
		w.log.Warn("warm-up scan failed", logger.Error(err))
		return
	}
	w.log.Info("warm-up scan done",
		logger.Int("scanned", sum.TotalScanned),
		logger.Int("fetched", sum.FreshlyFetched),
		logger.Int("stale", sum.NeedsRevalidation))
}

// Stop cancels a running warm-up and stops the scheduler.
func (w *Warmer) Stop() {
	w.cancel()
	if w.Enabled() {
		w.cron.Stop()
		w.log.Info("warmer stopped")
	}
}
