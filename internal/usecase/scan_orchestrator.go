package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	"QullaScan/internal/domain/service"
	rrepo "QullaScan/internal/repository"
	"QullaScan/internal/service/swr"
	"QullaScan/internal/services/proxyplay"
	"QullaScan/internal/services/scoring"
	"QullaScan/pkg/logger"
)

var (
	ErrSymbolNotCached = errors.New("symbol not in cache")
	ErrArchiveDisabled = errors.New("snapshot archive disabled")
	ErrNoScanYet       = errors.New("no scan has completed yet")
)

// Universe resolves and refreshes the symbols a scan covers.
type Universe interface {
	Symbols(ctx context.Context) ([]string, error)
	Refresh(ctx context.Context) ([]string, string, error)
	Size() int
}

// Scheduler accepts symbols for background revalidation.
type Scheduler interface {
	Schedule(ctx context.Context, symbols []string, reason string) bool
}

type OrchestratorConfig struct {
	BatchSize    int
	MaxBatchSize int
	BatchDelay   time.Duration
	LookupChunk  int
	EmitChunk    int
	ProxyMinRS   int
	Archive      bool
}

// ScanOrchestrator drives one scan: universe, cache lookup, batched fetch,
// caching, proxy plays and the summary. Progress goes to an Emitter.
type ScanOrchestrator struct {
	universe  Universe
	store     *swr.Store[models.SymbolRecord]
	eval      service.Evaluator
	reval     Scheduler
	publisher repository.EventPublisher
	archive   repository.SnapshotStore
	metrics   repository.Metrics
	log       *logger.Logger
	cfg       OrchestratorConfig
	now       func() time.Time

	mu    sync.RWMutex
	index *proxyplay.Index
	last  *models.ScanSummary
	after sync.WaitGroup
}

func NewScanOrchestrator(
	universe Universe,
	store *swr.Store[models.SymbolRecord],
	eval service.Evaluator,
	reval Scheduler,
	publisher repository.EventPublisher,
	archive repository.SnapshotStore,
	metrics repository.Metrics,
	log *logger.Logger,
	cfg OrchestratorConfig,
) *ScanOrchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.LookupChunk <= 0 {
		cfg.LookupChunk = 100
	}
	if cfg.EmitChunk <= 0 {
		cfg.EmitChunk = 50
	}
	if cfg.ProxyMinRS <= 0 {
		cfg.ProxyMinRS = proxyplay.DefaultMinRS
	}
	if publisher == nil {
		publisher = repository.NopPublisher{}
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	return &ScanOrchestrator{
		universe:  universe,
		store:     store,
		eval:      eval,
		reval:     reval,
		publisher: publisher,
		archive:   archive,
		metrics:   metrics,
		log:       log.With("orchestrator"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Scan runs a full scan and reports progress to out. It returns the summary
// sent in the complete event. A cancelled ctx or a failing Emitter stops the
// scan between batches.
func (o *ScanOrchestrator) Scan(ctx context.Context, opts models.ScanOptions, out Emitter) (*models.ScanSummary, error) {
	start := o.now()
	st := &stream{out: out}
	if !opts.Type.IsValid() {
		opts.Type = models.ScanAll
	}

	st.status(ctx, StatusPayload{Phase: PhaseInit, Message: "scanner starting", Timestamp: &start})

	st.status(ctx, StatusPayload{Phase: PhaseBenchmarkLoading, Message: "loading benchmark performance"})
	bench := o.benchmark(ctx)
	msg := "benchmark unavailable, RS ratings neutral"
	if bench != nil {
		msg = fmt.Sprintf("benchmark loaded (1M: %.1f%%, 3M: %.1f%%, 6M: %.1f%%)", bench.M1, bench.M3, bench.M6)
	}
	st.status(ctx, StatusPayload{Phase: PhaseBenchmarkLoaded, Message: msg})

	symbols, err := o.symbols(ctx, opts.ForceRefresh)
	if err != nil {
		o.metrics.RecordError("universe")
		o.log.Error("universe unavailable", logger.Error(err))
		st.emit(ctx, EventError, ErrorPayload{Message: "universe unavailable: " + err.Error()})
		return nil, fmt.Errorf("resolve universe: %w", err)
	}
	st.status(ctx, StatusPayload{
		Phase:   PhaseSymbolsLoaded,
		Message: fmt.Sprintf("%d symbols loaded", len(symbols)),
		Total:   intp(len(symbols)),
	})
	if err := o.aborted(ctx, st); err != nil {
		return nil, err
	}

	var (
		cached       []*models.SymbolRecord
		toFetch      []string
		toRevalidate []string
		hashes       map[string]string
	)
	if opts.ForceRefresh {
		toFetch = symbols
		hashes = make(map[string]string, len(symbols))
	} else {
		st.status(ctx, StatusPayload{Phase: PhaseCacheCheck, Message: "checking cache"})
		cached, toFetch, toRevalidate, hashes = o.lookup(ctx, symbols)
		st.cachedChunks(ctx, nonNil(scoring.Filter(cached, opts.Type)), o.cfg.EmitChunk)
	}

	st.status(ctx, StatusPayload{
		Phase:   PhaseFetching,
		Message: fmt.Sprintf("fetching %d symbols", len(toFetch)),
		Cached:  intp(len(cached)),
		ToFetch: intp(len(toFetch)),
	})

	fetched := o.fetch(ctx, st, toFetch, opts, bench, hashes)

	// Stale entries are refreshed even when the client left early.
	if len(toRevalidate) > 0 && o.reval != nil {
		defer o.reval.Schedule(context.WithoutCancel(ctx), toRevalidate, "stale")
	}
	if err := o.aborted(ctx, st); err != nil {
		o.log.Info("scan aborted",
			logger.Int("fetched", len(fetched)),
			logger.Int("remaining", len(toFetch)-len(fetched)),
			logger.Error(err))
		return nil, err
	}

	all := make([]*models.SymbolRecord, 0, len(cached)+len(fetched))
	all = append(all, cached...)
	all = append(all, fetched...)

	idx := proxyplay.Build(all, o.cfg.ProxyMinRS)
	idx.Apply(all)

	filtered := scoring.Filter(all, opts.Type)
	stats := o.store.Stats(ctx)
	o.metrics.SetRedisAvailable(stats.RedisAvailable)

	summary := models.ScanSummary{
		TotalStocks:       len(filtered),
		TotalScanned:      len(all),
		FromCache:         len(cached),
		FreshlyFetched:    len(fetched),
		NeedsRevalidation: len(toRevalidate),
		ScanTime:          o.now(),
		CacheStats: models.CacheStats{
			RedisAvailable:  stats.RedisAvailable,
			MemoryCacheSize: stats.MemoryCacheSize,
			RedisKeys:       stats.RedisKeys,
		},
	}

	o.mu.Lock()
	o.index = idx
	o.last = &summary
	o.mu.Unlock()

	st.emit(ctx, EventComplete, CompletePayload{ScanSummary: summary, ProxyPlays: proxyMap(filtered)})
	if len(toRevalidate) > 0 {
		st.status(ctx, StatusPayload{
			Phase:   PhaseRevalidation,
			Message: fmt.Sprintf("refreshing %d stale entries in the background", len(toRevalidate)),
			Count:   intp(len(toRevalidate)),
		})
	}

	elapsed := o.now().Sub(start)
	o.metrics.RecordScan(elapsed.Seconds(), len(symbols), len(cached), len(fetched))
	o.log.Info("scan complete",
		logger.Int("universe", len(symbols)),
		logger.Int("from_cache", len(cached)),
		logger.Int("fetched", len(fetched)),
		logger.Int("stale", len(toRevalidate)),
		logger.Bool("redis", stats.RedisAvailable),
		logger.Duration("duration", elapsed))

	o.after.Add(1)
	go func(ctx context.Context) {
		defer o.after.Done()
		o.finish(ctx, summary, all, hashes)
	}(context.WithoutCancel(ctx))

	return &summary, nil
}

// List runs a scan without a live client and returns the filtered records
// together with the summary.
func (o *ScanOrchestrator) List(ctx context.Context, opts models.ScanOptions) (*ScanResult, error) {
	if !opts.Type.IsValid() {
		opts.Type = models.ScanAll
	}
	rec := &Recorder{}
	sum, err := o.Scan(ctx, opts, rec)
	if err != nil {
		return nil, err
	}
	return &ScanResult{
		Stocks:      nonNil(scoring.Filter(rec.Records(), opts.Type)),
		ScanSummary: *sum,
	}, nil
}

// finish publishes the summary and archives the snapshots after the client
// has been answered.
func (o *ScanOrchestrator) finish(ctx context.Context, summary models.ScanSummary, all []*models.SymbolRecord, hashes map[string]string) {
	if err := o.publisher.PublishScanCompleted(ctx, summary); err != nil {
		o.log.Warn("publish scan summary failed", logger.Error(err))
		o.metrics.RecordError("publish_scan_completed")
	}
	o.archiveSnapshots(ctx, all, hashes, summary.ScanTime)
}

// Wait blocks until every pending post-scan publish and archive is done or
// ctx ends.
func (o *ScanOrchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.after.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *ScanOrchestrator) aborted(ctx context.Context, st *stream) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st.err != nil {
		return fmt.Errorf("emit: %w", st.err)
	}
	return nil
}

func (o *ScanOrchestrator) benchmark(ctx context.Context) *models.Performance {
	p, err := o.eval.Benchmark(ctx)
	if err != nil {
		o.log.Warn("benchmark unavailable", logger.Error(err))
		o.metrics.RecordError("benchmark")
		return nil
	}
	return &p
}

func (o *ScanOrchestrator) symbols(ctx context.Context, refresh bool) ([]string, error) {
	if refresh {
		syms, source, err := o.universe.Refresh(ctx)
		if err == nil {
			o.log.Debug("universe refreshed", logger.String("source", source), logger.Int("symbols", len(syms)))
			return syms, nil
		}
		o.log.Warn("universe refresh failed, using cached list", logger.Error(err))
	}
	return o.universe.Symbols(ctx)
}

type lookupResult struct {
	cached []*models.SymbolRecord
	miss   []string
	stale  []string
	hashes map[string]string
}

// lookup reads the cache in parallel chunks, keeping universe order within
// each of the returned lists.
func (o *ScanOrchestrator) lookup(ctx context.Context, symbols []string) ([]*models.SymbolRecord, []string, []string, map[string]string) {
	chunks := (len(symbols) + o.cfg.LookupChunk - 1) / o.cfg.LookupChunk
	results := make([]lookupResult, chunks)

	var wg sync.WaitGroup
	for c := 0; c < chunks; c++ {
		lo := c * o.cfg.LookupChunk
		hi := lo + o.cfg.LookupChunk
		if hi > len(symbols) {
			hi = len(symbols)
		}
		wg.Add(1)
		go func(c int, batch []string) {
			defer wg.Done()
			entries := o.store.GetMany(ctx, batch)
			res := lookupResult{hashes: make(map[string]string, len(entries))}
			for _, sym := range batch {
				e, ok := entries[sym]
				if !ok {
					res.miss = append(res.miss, sym)
					o.metrics.RecordCacheLookup("miss")
					continue
				}
				rec := e.Data
				res.cached = append(res.cached, &rec)
				res.hashes[sym] = e.DataHash
				if o.store.NeedsRevalidation(e.CachedTime()) {
					res.stale = append(res.stale, sym)
					o.metrics.RecordCacheLookup("stale")
				} else {
					o.metrics.RecordCacheLookup("hit")
				}
			}
			results[c] = res
		}(c, symbols[lo:hi])
	}
	wg.Wait()

	var (
		cached []*models.SymbolRecord
		miss   []string
		stale  []string
	)
	hashes := make(map[string]string, len(symbols))
	for _, r := range results {
		cached = append(cached, r.cached...)
		miss = append(miss, r.miss...)
		stale = append(stale, r.stale...)
		for k, v := range r.hashes {
			hashes[k] = v
		}
	}
	return cached, miss, stale, hashes
}

func (o *ScanOrchestrator) batchSize(requested int) int {
	switch {
	case requested <= 0:
		return o.cfg.BatchSize
	case requested > o.cfg.MaxBatchSize:
		return o.cfg.MaxBatchSize
	default:
		return requested
	}
}

// fetch evaluates symbols batch by batch, caching and emitting each batch.
func (o *ScanOrchestrator) fetch(ctx context.Context, st *stream, symbols []string, opts models.ScanOptions, bench *models.Performance, hashes map[string]string) []*models.SymbolRecord {
	size := o.batchSize(opts.BatchSize)
	var fetched []*models.SymbolRecord
	processed := 0

	for lo := 0; lo < len(symbols); lo += size {
		if o.aborted(ctx, st) != nil {
			break
		}
		hi := lo + size
		if hi > len(symbols) {
			hi = len(symbols)
		}
		batch := symbols[lo:hi]

		recs, failed, err := o.runBatch(ctx, batch, bench)
		processed += len(batch)
		if err != nil {
			o.metrics.RecordError("batch")
			o.log.Error("batch failed", logger.Strings("symbols", batch), logger.Error(err))
			st.emit(ctx, EventError, ErrorPayload{
				Message: fmt.Sprintf("batch %d failed", lo/size+1),
				Symbols: batch,
			})
		} else {
			if len(failed) > 0 {
				o.log.Debug("symbols dropped", logger.Strings("symbols", failed))
			}
			for _, rec := range recs {
				e, err := o.store.Set(ctx, rec.Symbol, *rec)
				if err != nil {
					o.log.Warn("cache write failed", logger.String("symbol", rec.Symbol), logger.Error(err))
					continue
				}
				hashes[rec.Symbol] = e.DataHash
			}
			fetched = append(fetched, recs...)
			st.emit(ctx, EventBatch, BatchPayload{
				Stocks: nonNil(scoring.Filter(recs, opts.Type)),
				Progress: BatchProgress{
					Processed: processed,
					Total:     len(symbols),
					Percent:   percent(processed, len(symbols)),
				},
			})
		}

		if hi < len(symbols) && !sleepCtx(ctx, o.cfg.BatchDelay) {
			break
		}
	}
	return fetched
}

// runBatch turns a panicking evaluator into a batch error.
func (o *ScanOrchestrator) runBatch(ctx context.Context, batch []string, bench *models.Performance) (recs []*models.SymbolRecord, failed []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			recs, failed = nil, nil
			err = fmt.Errorf("batch panic: %v", r)
		}
	}()
	recs, failed = o.eval.EvaluateBatch(ctx, batch, bench)
	return recs, failed, nil
}

func (o *ScanOrchestrator) archiveSnapshots(ctx context.Context, records []*models.SymbolRecord, hashes map[string]string, at time.Time) {
	if !o.cfg.Archive || o.archive == nil || len(records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	snaps := rrepo.SnapshotsFrom(uuid.NewString(), at, records, hashes)
	if err := o.archive.StoreBatch(ctx, snaps); err != nil {
		o.metrics.RecordError("archive")
		o.log.Warn("snapshot archive failed", logger.Int("rows", len(snaps)), logger.Error(err))
	}
}

// Symbol returns one record, cache-first. Stale hits are returned as is and
// queued for refresh.
func (o *ScanOrchestrator) Symbol(ctx context.Context, symbol string, refresh bool) (*models.SymbolRecord, bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !refresh {
		if e, ok := o.store.Get(ctx, symbol); ok {
			if o.store.NeedsRevalidation(e.CachedTime()) && o.reval != nil {
				o.reval.Schedule(context.WithoutCancel(ctx), []string{symbol}, "lookup")
			}
			rec := e.Data
			rec.ProxyPlays = o.lookupProxy(&rec)
			return &rec, true, nil
		}
	}

	rec, err := o.eval.Evaluate(ctx, symbol, o.benchmark(ctx))
	if err != nil {
		return nil, false, err
	}
	if _, err := o.store.Set(ctx, symbol, *rec); err != nil {
		o.log.Warn("cache write failed", logger.String("symbol", symbol), logger.Error(err))
	}
	rec.ProxyPlays = o.lookupProxy(rec)
	return rec, false, nil
}

// ProxyPlays answers peer lookups from the last completed scan's index.
func (o *ScanOrchestrator) ProxyPlays(ctx context.Context, symbol string) ([]string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	o.mu.RLock()
	idx := o.index
	o.mu.RUnlock()
	if idx == nil {
		return nil, ErrNoScanYet
	}
	e, ok := o.store.Get(ctx, symbol)
	if !ok {
		return nil, ErrSymbolNotCached
	}
	return idx.Lookup(symbol, e.Data.Industry, e.Data.Sector), nil
}

func (o *ScanOrchestrator) lookupProxy(rec *models.SymbolRecord) []string {
	o.mu.RLock()
	idx := o.index
	o.mu.RUnlock()
	return idx.Lookup(rec.Symbol, rec.Industry, rec.Sector)
}

// ScanResult is the body of the non-streaming scan endpoint.
type ScanResult struct {
	Stocks []*models.SymbolRecord `json:"stocks"`
	models.ScanSummary
}

// Stats is the body of the stats endpoint.
type Stats struct {
	Cache           models.CacheStats   `json:"cache"`
	UniverseSize    int                 `json:"universeSize"`
	InFlight        int                 `json:"revalidationsInFlight"`
	ProxyIndustries int                 `json:"proxyIndustries"`
	ProxySectors    int                 `json:"proxySectors"`
	LastScan        *models.ScanSummary `json:"lastScan,omitempty"`
}

func (o *ScanOrchestrator) Stats(ctx context.Context) Stats {
	cs := o.store.Stats(ctx)
	o.mu.RLock()
	industries, sectors := o.index.Size()
	last := o.last
	o.mu.RUnlock()
	return Stats{
		Cache: models.CacheStats{
			RedisAvailable:  cs.RedisAvailable,
			MemoryCacheSize: cs.MemoryCacheSize,
			RedisKeys:       cs.RedisKeys,
		},
		UniverseSize:    o.universe.Size(),
		InFlight:        o.store.Registry().Len(),
		ProxyIndustries: industries,
		ProxySectors:    sectors,
		LastScan:        last,
	}
}

// RefreshUniverse re-resolves the universe and replaces the cached list.
func (o *ScanOrchestrator) RefreshUniverse(ctx context.Context) ([]string, string, error) {
	return o.universe.Refresh(ctx)
}

// History returns archived snapshots for symbol.
func (o *ScanOrchestrator) History(ctx context.Context, symbol string, limit int) ([]models.Snapshot, error) {
	if o.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return o.archive.History(ctx, strings.ToUpper(strings.TrimSpace(symbol)), limit)
}

func nonNil(rs []*models.SymbolRecord) []*models.SymbolRecord {
	if rs == nil {
		return []*models.SymbolRecord{}
	}
	return rs
}

func proxyMap(records []*models.SymbolRecord) map[string][]string {
	out := make(map[string][]string)
	for _, r := range records {
		if len(r.ProxyPlays) > 0 {
			out[r.Symbol] = r.ProxyPlays
		}
	}
	return out
}
