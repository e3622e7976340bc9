package universe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"QullaScan/pkg/cache"
	xhttp "QullaScan/pkg/http"
	"QullaScan/pkg/logger"
)

type stubScreener struct {
	syms []string
	err  error
}

func (s stubScreener) Symbols(context.Context) ([]string, error) { return s.syms, s.err }

func memCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func manySymbols(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%03d", i)
	}
	return out
}

func TestResolveChain(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	file := filepath.Join(dir, "universe.txt")
	if err := os.WriteFile(file, []byte("# core\nnvda, amd\nAAPL\n\nnvda\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		opts   []Option
		source string
		first  string
		count  int
	}{
		{"config file wins", []Option{WithStatic(nil, file), WithScreener(stubScreener{syms: manySymbols(200)}, 100)}, SourceConfig, "NVDA", 3},
		{"screener above floor", []Option{WithScreener(stubScreener{syms: manySymbols(150)}, 100)}, SourceScreener, "S000", 150},
		{"screener below floor", []Option{WithScreener(stubScreener{syms: manySymbols(99)}, 100)}, SourceFallback, DefaultSymbols[0], len(DefaultSymbols)},
		{"screener error", []Option{WithScreener(stubScreener{err: errors.New("down")}, 100)}, SourceFallback, DefaultSymbols[0], len(DefaultSymbols)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(memCache(t), logger.Nop(), tt.opts...)
			syms, source, err := r.Refresh(ctx)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if source != tt.source || len(syms) != tt.count || syms[0] != tt.first {
				t.Fatalf("got source=%s count=%d first=%s", source, len(syms), syms[0])
			}
		})
	}
}

func TestCachedListIsPreferred(t *testing.T) {
	ctx := context.Background()
	mc := memCache(t)
	r := NewResolver(mc, logger.Nop(), WithStatic([]string{"msft"}, ""))
	if _, err := r.Symbols(ctx); err != nil {
		t.Fatal(err)
	}

	var stored []string
	if err := mc.Get(ctx, CacheKey, &stored); err != nil || len(stored) != 1 {
		t.Fatalf("list not cached: %v %v", stored, err)
	}

	r2 := NewResolver(mc, logger.Nop(), WithStatic([]string{"TSLA", "AMD"}, ""))
	syms, err := r2.Symbols(ctx)
	if err != nil || len(syms) != 1 || syms[0] != "MSFT" || r2.Source() != SourceCache {
		t.Fatalf("cached list should win: %v %s %v", syms, r2.Source(), err)
	}
	syms, source, _ := r2.Refresh(ctx)
	if source != SourceConfig || len(syms) != 2 {
		t.Fatalf("refresh should bypass cache: %v %s", syms, source)
	}
}

func TestEmptyUniverse(t *testing.T) {
	r := NewResolver(nil, logger.Nop(), WithFallback(nil))
	if _, err := r.Symbols(context.Background()); !errors.Is(err, ErrEmptyUniverse) {
		t.Fatalf("want ErrEmptyUniverse, got %v", err)
	}
}

func TestScreenerFiltersAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "k" || q.Get("marketCapMoreThan") != "300000000" || q.Get("limit") != "50" {
			t.Errorf("query: %s", r.URL.RawQuery)
		}
		var rows []screenerRow
		if q.Get("exchange") == "NASDAQ" {
			rows = []screenerRow{
				{Symbol: "SMALL", MarketCap: 1e9, IsActivelyTrading: true},
				{Symbol: "QQQ", MarketCap: 3e11, IsActivelyTrading: true, IsEtf: true},
				{Symbol: "BIG", MarketCap: 2e12, IsActivelyTrading: true},
			}
		} else {
			rows = []screenerRow{
				{Symbol: "MID", MarketCap: 5e10, IsActivelyTrading: true},
				{Symbol: "DEAD", MarketCap: 9e12},
			}
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	s := NewScreener(srv.URL, "k", ScreenerFilter{MinMarketCap: 300_000_000, MinVolume: 100_000, MinPrice: 5, Limit: 100}, xhttp.NewClient(), nil)
	syms, err := s.Symbols(context.Background())
	if err != nil {
		t.Fatalf("screener: %v", err)
	}
	want := []string{"BIG", "MID", "SMALL"}
	if len(syms) != len(want) {
		t.Fatalf("want %v got %v", want, syms)
	}
	for i := range want {
		if syms[i] != want[i] {
			t.Fatalf("want %v got %v", want, syms)
		}
	}
}
