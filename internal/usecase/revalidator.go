package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	"QullaScan/internal/domain/service"
	"QullaScan/internal/service/swr"
	"QullaScan/pkg/logger"
	"QullaScan/pkg/queue"
)

// JobTypeRevalidate is the queue message type served by Revalidator.
const JobTypeRevalidate = "scanner.revalidate"

// Revalidation outcomes reported to metrics.
const (
	RevalChanged   = "changed"
	RevalUnchanged = "unchanged"
	RevalInFlight  = "in_flight"
	RevalFailed    = "failed"
	RevalDropped   = "dropped"
)

// Enqueuer is the part of the job queue the revalidator feeds.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
	Depth() int
}

type RevalidatorConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Revalidator refreshes stale symbols off the request path. Work arrives as
// queue messages; each message is processed in small batches so a long
// stale list does not burst the providers.
type Revalidator struct {
	store     *swr.Store[models.SymbolRecord]
	eval      service.Evaluator
	publisher repository.EventPublisher
	metrics   repository.Metrics
	log       *logger.Logger
	cfg       RevalidatorConfig
	q         Enqueuer
}

func NewRevalidator(
	store *swr.Store[models.SymbolRecord],
	eval service.Evaluator,
	publisher repository.EventPublisher,
	metrics repository.Metrics,
	log *logger.Logger,
	cfg RevalidatorConfig,
) *Revalidator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if publisher == nil {
		publisher = repository.NopPublisher{}
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	return &Revalidator{
		store:     store,
		eval:      eval,
		publisher: publisher,
		metrics:   metrics,
		log:       log.With("revalidator"),
		cfg:       cfg,
	}
}

// Attach binds the queue that Schedule writes to.
func (r *Revalidator) Attach(q Enqueuer) {
	r.q = q
}

func (r *Revalidator) Name() string { return "revalidate-symbols" }
func (r *Revalidator) Type() string { return JobTypeRevalidate }

// Schedule queues symbols for background refresh without blocking. It
// returns false when the request was dropped.
func (r *Revalidator) Schedule(ctx context.Context, symbols []string, reason string) bool {
	if len(symbols) == 0 {
		return true
	}
	if r.q == nil {
		r.log.Warn("revalidation dropped, no queue attached", logger.Int("symbols", len(symbols)))
		r.metrics.RecordRevalidation(RevalDropped)
		return false
	}
	req := models.RevalidateRequest{Symbols: append([]string(nil), symbols...), Reason: reason}
	err := r.q.Enqueue(ctx, JobTypeRevalidate, req)
	r.metrics.SetRevalidationQueue(r.q.Depth())
	if err != nil {
		r.log.Warn("revalidation dropped",
			logger.Int("symbols", len(symbols)),
			logger.String("reason", reason),
			logger.Error(err))
		r.metrics.RecordRevalidation(RevalDropped)
		return false
	}
	r.log.Debug("revalidation queued", logger.Int("symbols", len(symbols)), logger.String("reason", reason))
	return true
}

// Handle implements queue.Job.
func (r *Revalidator) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.RevalidateRequest](payload)
	if err != nil {
		return fmt.Errorf("revalidate payload: %w", err)
	}
	if r.q != nil {
		r.metrics.SetRevalidationQueue(r.q.Depth())
	}
	_, err = r.Run(ctx, req.Symbols)
	return err
}

// Report summarises one revalidation run.
type Report struct {
	Total   int
	Updated int
	Changed int
	Skipped int
	Failed  int
}

// Run revalidates symbols batch by batch. Per-symbol failures are counted,
// not returned; only cancellation aborts the run.
func (r *Revalidator) Run(ctx context.Context, symbols []string) (Report, error) {
	rep := Report{Total: len(symbols)}
	if len(symbols) == 0 {
		return rep, nil
	}

	var bench *models.Performance
	if p, err := r.eval.Benchmark(ctx); err != nil {
		r.log.Warn("benchmark unavailable, using neutral RS", logger.Error(err))
	} else {
		bench = &p
	}

	start := time.Now()
	for lo := 0; lo < len(symbols); lo += r.cfg.BatchSize {
		if lo > 0 && !sleepCtx(ctx, r.cfg.BatchDelay) {
			return rep, ctx.Err()
		}
		hi := lo + r.cfg.BatchSize
		if hi > len(symbols) {
			hi = len(symbols)
		}
		r.batch(ctx, symbols[lo:hi], bench, &rep)
	}

	r.log.Info("background revalidation complete",
		logger.Int("updated", rep.Updated),
		logger.Int("total", rep.Total),
		logger.Int("changed", rep.Changed),
		logger.Int("failed", rep.Failed),
		logger.Duration("duration", time.Since(start)))
	return rep, nil
}

func (r *Revalidator) batch(ctx context.Context, symbols []string, bench *models.Performance, rep *Report) {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sym := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(sym))
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := r.one(ctx, sym, bench)
			r.metrics.RecordRevalidation(outcome)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case RevalChanged:
				rep.Updated++
				rep.Changed++
			case RevalUnchanged:
				rep.Updated++
			case RevalInFlight:
				rep.Skipped++
			default:
				rep.Failed++
			}
		}()
	}
	wg.Wait()
}

func (r *Revalidator) one(ctx context.Context, symbol string, bench *models.Performance) string {
	res, err := r.store.Revalidate(ctx, symbol, func(ctx context.Context) (models.SymbolRecord, error) {
		rec, err := r.eval.Evaluate(ctx, symbol, bench)
		if err != nil {
			return models.SymbolRecord{}, err
		}
		return *rec, nil
	})
	switch {
	case errors.Is(err, swr.ErrRevalidationInFlight):
		return RevalInFlight
	case err != nil:
		r.log.Debug("revalidation failed", logger.String("symbol", symbol), logger.Error(err))
		return RevalFailed
	}
	if !res.Changed {
		return RevalUnchanged
	}

	rec := res.Entry.Data
	change := models.SymbolChange{
		Symbol:   symbol,
		OldHash:  res.OldHash,
		NewHash:  res.Entry.DataHash,
		CachedAt: res.Entry.CachedTime(),
		Changed:  true,
		Record:   &rec,
	}
	if err := r.publisher.PublishSymbolChange(ctx, change); err != nil {
		r.log.Warn("publish symbol change failed", logger.String("symbol", symbol), logger.Error(err))
		r.metrics.RecordError("publish_symbol_change")
	}
	return RevalChanged
}

// sleepCtx waits d or until ctx is done; false means ctx ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ queue.Job = (*Revalidator)(nil)
