package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	svccache "QullaScan/internal/service/cache"
	"QullaScan/internal/service/enrichment"
	"QullaScan/internal/services/indicators"
	"QullaScan/internal/services/scoring"
	"QullaScan/pkg/logger"
)

// Symbol outcomes reported to metrics.
const (
	OutcomeScored       = "scored"
	OutcomeFailed       = "failed"
	OutcomeInsufficient = "insufficient_history"
)

// Config holds the evaluation knobs.
type Config struct {
	Benchmark       string
	HistoryLookback time.Duration
	MinBars         int
	ChartBars       int
	EnrichBatch     int
	EnrichDelay     time.Duration
	BenchmarkTTL    time.Duration
}

// Scanner evaluates symbols against market data and optional enrichment.
type Scanner struct {
	md      repository.MarketDataProvider
	enr     repository.EnrichmentProvider
	cfg     Config
	bench   *svccache.TTLCache[models.Performance]
	metrics repository.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// New builds a Scanner. enr may be nil when enrichment is disabled.
func New(md repository.MarketDataProvider, enr repository.EnrichmentProvider, cfg Config, m repository.Metrics, log *logger.Logger) *Scanner {
	if cfg.Benchmark == "" {
		cfg.Benchmark = "SPY"
	}
	if cfg.HistoryLookback <= 0 {
		cfg.HistoryLookback = 365 * 24 * time.Hour
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = indicators.MinBars
	}
	if cfg.EnrichBatch <= 0 {
		cfg.EnrichBatch = enrichment.DefaultConcurrency
	}
	if cfg.BenchmarkTTL <= 0 {
		cfg.BenchmarkTTL = 10 * time.Minute
	}
	if m == nil {
		m = repository.NopMetrics{}
	}
	return &Scanner{
		md:      md,
		enr:     enr,
		cfg:     cfg,
		bench:   svccache.NewTTLCache[models.Performance](cfg.BenchmarkTTL),
		metrics: m,
		log:     log.With("scanner"),
		now:     time.Now,
	}
}

// Benchmark fetches the benchmark history once per BenchmarkTTL. On failure
// it returns a zero Performance alongside the error.
func (s *Scanner) Benchmark(ctx context.Context) (models.Performance, error) {
	if p, ok := s.bench.Get(s.cfg.Benchmark); ok {
		return p, nil
	}
	now := s.now()
	bars, err := s.md.History(ctx, s.cfg.Benchmark, now.Add(-s.cfg.HistoryLookback), now)
	if err != nil {
		return models.Performance{}, fmt.Errorf("benchmark %s: %w", s.cfg.Benchmark, err)
	}
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			closes = append(closes, b.Close)
		}
	}
	p := scoring.BenchmarkPerformance(closes)
	s.bench.Set(s.cfg.Benchmark, p)
	return p, nil
}

// Evaluate scores one symbol and overlays its enrichment.
func (s *Scanner) Evaluate(ctx context.Context, symbol string, bench *models.Performance) (*models.SymbolRecord, error) {
	rec, err := s.base(ctx, symbol, bench)
	if err != nil {
		return nil, err
	}
	if s.enr == nil {
		return rec, nil
	}
	e, err := s.enr.Fetch(ctx, rec.Symbol)
	if err != nil {
		s.log.Debug("enrichment unavailable", logger.String("symbol", rec.Symbol), logger.Error(err))
		return rec, nil
	}
	return models.Overlay(rec, e), nil
}

// EvaluateBatch scores symbols concurrently, then fetches enrichment in
// rate-limited groups for the symbols that scored.
func (s *Scanner) EvaluateBatch(ctx context.Context, symbols []string, bench *models.Performance) ([]*models.SymbolRecord, []string) {
	records := make([]*models.SymbolRecord, len(symbols))

	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			rec, err := s.base(ctx, sym, bench)
			if err != nil {
				return
			}
			records[i] = rec
		}(i, sym)
	}
	wg.Wait()

	out := make([]*models.SymbolRecord, 0, len(symbols))
	var failed []string
	for i, rec := range records {
		if rec == nil {
			failed = append(failed, strings.ToUpper(strings.TrimSpace(symbols[i])))
			continue
		}
		out = append(out, rec)
	}
	if s.enr == nil || len(out) == 0 {
		return out, failed
	}

	scored := make([]string, len(out))
	for i, rec := range out {
		scored[i] = rec.Symbol
	}
	enriched := enrichment.FetchMany(ctx, s.enr, scored, s.cfg.EnrichBatch, s.cfg.EnrichDelay, s.log)
	for i, rec := range out {
		if e := enriched[rec.Symbol]; e != nil {
			out[i] = models.Overlay(rec, e)
		}
	}
	return out, failed
}

func (s *Scanner) base(ctx context.Context, symbol string, bench *models.Performance) (*models.SymbolRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	now := s.now()

	bars, err := s.md.History(ctx, symbol, now.Add(-s.cfg.HistoryLookback), now)
	if err != nil {
		return nil, s.fail(symbol, OutcomeFailed, fmt.Errorf("history %s: %w", symbol, err))
	}
	quote, err := s.md.Quote(ctx, symbol)
	if err != nil {
		return nil, s.fail(symbol, OutcomeFailed, fmt.Errorf("quote %s: %w", symbol, err))
	}

	snap, err := indicators.Compute(bars, quote, s.cfg.MinBars)
	if err != nil {
		outcome := OutcomeFailed
		if errors.Is(err, indicators.ErrInsufficientHistory) {
			outcome = OutcomeInsufficient
		}
		return nil, s.fail(symbol, outcome, fmt.Errorf("indicators %s: %w", symbol, err))
	}

	rs := scoring.NeutralRS
	if bench != nil {
		rs = scoring.RSRating(snap.Closes, snap.Sessions, *bench)
	}
	rec := scoring.BuildRecord(symbol, quote, snap, rs)
	rec.ChartData = indicators.ChartData(bars, s.cfg.ChartBars)
	s.metrics.RecordSymbol(OutcomeScored)
	return rec, nil
}

func (s *Scanner) fail(symbol, outcome string, err error) error {
	s.metrics.RecordSymbol(outcome)
	if !errors.Is(err, context.Canceled) {
		s.log.Debug("symbol skipped", logger.String("symbol", symbol), logger.String("outcome", outcome), logger.Error(err))
	}
	return err
}
