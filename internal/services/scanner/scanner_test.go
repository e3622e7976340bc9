package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	"QullaScan/pkg/logger"
)

type fakeMarket struct {
	mu      sync.Mutex
	bars    map[string][]models.Bar
	history int32
}

func (f *fakeMarket) History(_ context.Context, sym string, _, _ time.Time) ([]models.Bar, error) {
	atomic.AddInt32(&f.history, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bars[sym]
	if !ok {
		return nil, repository.ErrSymbolNotFound
	}
	return b, nil
}

func (f *fakeMarket) Quote(_ context.Context, sym string) (*models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bars[sym]
	if !ok || len(b) == 0 {
		return nil, repository.ErrSymbolNotFound
	}
	last := b[len(b)-1]
	return &models.Quote{Symbol: sym, Price: last.Close, PrevClose: b[len(b)-2].Close, Open: last.Open, Volume: last.Volume}, nil
}

type fakeEnrichment map[string]*models.Enrichment

func (f fakeEnrichment) Fetch(_ context.Context, sym string) (*models.Enrichment, error) {
	if sym == "ERR" {
		return nil, errors.New("blocked")
	}
	return f[sym], nil
}

func rising(n int, start float64) []models.Bar {
	out := make([]models.Bar, n)
	t0 := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := start * (1 + 0.004*float64(i))
		out[i] = models.Bar{Time: t0.AddDate(0, 0, i), Open: c, High: c * 1.06, Low: c, Close: c, Volume: 1_000_000}
	}
	return out
}

func newScanner(md *fakeMarket, enr repository.EnrichmentProvider) *Scanner {
	return New(md, enr, Config{ChartBars: 100}, nil, logger.Nop())
}

func TestEvaluateBatchOrderAndFailures(t *testing.T) {
	md := &fakeMarket{bars: map[string][]models.Bar{
		"AAA":   rising(260, 20),
		"BBB":   rising(260, 30),
		"SHORT": rising(30, 20),
	}}
	tech := "Technology"
	target := 99.0
	enr := fakeEnrichment{"BBB": {Symbol: "BBB", Sector: tech, TargetPrice: &target}}
	s := newScanner(md, enr)
	s.cfg.EnrichDelay = 0

	recs, failed := s.EvaluateBatch(context.Background(), []string{"aaa", "MISSING", "BBB", "SHORT"}, &models.Performance{})
	if len(recs) != 2 || recs[0].Symbol != "AAA" || recs[1].Symbol != "BBB" {
		t.Fatalf("records: %+v", recs)
	}
	if len(failed) != 2 || failed[0] != "MISSING" || failed[1] != "SHORT" {
		t.Fatalf("failed: %v", failed)
	}
	if recs[1].Sector != tech || recs[1].TargetPrice != 99 {
		t.Fatalf("enrichment not overlaid: %s %v", recs[1].Sector, recs[1].TargetPrice)
	}
	if recs[0].Sector != models.UnknownClassification {
		t.Fatalf("unenriched sector: %s", recs[0].Sector)
	}
	if len(recs[0].ChartData) != 100 {
		t.Fatalf("chart bars: %d", len(recs[0].ChartData))
	}
	if recs[0].ScanTypes == nil {
		t.Fatalf("scan types must be non-nil")
	}
}

func TestEvaluateIgnoresEnrichmentFailure(t *testing.T) {
	md := &fakeMarket{bars: map[string][]models.Bar{"ERR": rising(260, 20)}}
	s := newScanner(md, fakeEnrichment{})
	rec, err := s.Evaluate(context.Background(), "ERR", nil)
	if err != nil || rec == nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rec.AnalystRating != models.NoAnalystRating {
		t.Fatalf("rating: %s", rec.AnalystRating)
	}
	if rec.RSRating != 50 {
		t.Fatalf("missing benchmark must give neutral RS, got %d", rec.RSRating)
	}
}

func TestBenchmarkIsMemoised(t *testing.T) {
	md := &fakeMarket{bars: map[string][]models.Bar{"SPY": rising(260, 400)}}
	s := newScanner(md, nil)
	ctx := context.Background()

	p1, err := s.Benchmark(ctx)
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	if p1.M6 <= 0 {
		t.Fatalf("rising benchmark should have a positive 6M leg: %+v", p1)
	}
	if _, err := s.Benchmark(ctx); err != nil {
		t.Fatal(err)
	}
	if md.history != 1 {
		t.Fatalf("benchmark fetched %d times", md.history)
	}
}

func TestBenchmarkFailure(t *testing.T) {
	s := newScanner(&fakeMarket{bars: map[string][]models.Bar{}}, nil)
	p, err := s.Benchmark(context.Background())
	if !errors.Is(err, repository.ErrSymbolNotFound) || p != (models.Performance{}) {
		t.Fatalf("want zero performance and provider error, got %+v %v", p, err)
	}
}

type countingEnrichment struct {
	mu   sync.Mutex
	seen []string
}

func (c *countingEnrichment) Fetch(_ context.Context, sym string) (*models.Enrichment, error) {
	c.mu.Lock()
	c.seen = append(c.seen, sym)
	c.mu.Unlock()
	return &models.Enrichment{Symbol: sym, Sector: "Energy"}, nil
}

func TestEvaluateBatchEnrichesOnlyScoredSymbols(t *testing.T) {
	md := &fakeMarket{bars: map[string][]models.Bar{
		"AAA":   rising(260, 20),
		"SHORT": rising(30, 20),
	}}
	enr := &countingEnrichment{}
	s := newScanner(md, enr)
	s.cfg.EnrichDelay = 0

	recs, failed := s.EvaluateBatch(context.Background(), []string{"aaa", "MISSING", "SHORT"}, nil)
	if len(recs) != 1 || len(failed) != 2 {
		t.Fatalf("records %d failed %v", len(recs), failed)
	}
	if len(enr.seen) != 1 || enr.seen[0] != "AAA" {
		t.Fatalf("enrichment requested for %v", enr.seen)
	}
	if recs[0].Sector != "Energy" {
		t.Fatalf("enrichment not overlaid: %s", recs[0].Sector)
	}

	enr.seen = nil
	if recs, _ := s.EvaluateBatch(context.Background(), []string{"MISSING"}, nil); len(recs) != 0 || len(enr.seen) != 0 {
		t.Fatalf("no enrichment expected when nothing scored: %v", enr.seen)
	}
}
