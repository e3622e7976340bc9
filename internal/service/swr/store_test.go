package swr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"QullaScan/pkg/cache"
	"QullaScan/pkg/logger"
)

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(t *testing.T) (*Store[quote], *clock) {
	t.Helper()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = mc.Close() })
	clk := &clock{t: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}
	return NewStore[quote](mc, "stock", logger.Nop(), WithClock[quote](clk.now)), clk
}

func TestNeedsRevalidationBoundary(t *testing.T) {
	s, clk := newTestStore(t)
	cachedAt := clk.t

	clk.t = cachedAt.Add(4 * time.Hour)
	if s.NeedsRevalidation(cachedAt) {
		t.Fatalf("exactly 4h old must not need revalidation")
	}
	clk.t = cachedAt.Add(4*time.Hour + time.Millisecond)
	if !s.NeedsRevalidation(cachedAt) {
		t.Fatalf("4h+1ms old must need revalidation")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	e, err := s.Set(ctx, "aapl", quote{"AAPL", 190})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := s.Get(ctx, "AAPL")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.DataHash != e.DataHash || got.CachedAt != clk.t.UnixMilli() || got.Data.Price != 190 {
		t.Fatalf("entry mismatch: %+v", got)
	}

	many := s.GetMany(ctx, []string{"AAPL", "MSFT"})
	if len(many) != 1 || many["AAPL"] == nil {
		t.Fatalf("get many: %+v", many)
	}
}

func TestRevalidateHashSemantics(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()
	t0 := clk.t

	first, _ := s.Set(ctx, "NVDA", quote{"NVDA", 120})
	h := first.DataHash

	clk.t = t0.Add(5 * time.Hour)
	res, err := s.Revalidate(ctx, "NVDA", func(context.Context) (quote, error) {
		return quote{"NVDA", 120}, nil
	})
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if res.Changed || res.Entry.DataHash != h {
		t.Fatalf("identical data must keep hash %s, got %+v", h, res)
	}

	res, err = s.Revalidate(ctx, "NVDA", func(context.Context) (quote, error) {
		return quote{"NVDA", 125}, nil
	})
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if !res.Changed || res.OldHash != h || res.Entry.DataHash == h {
		t.Fatalf("changed data must change hash: %+v", res)
	}
	stored, _ := s.Get(ctx, "NVDA")
	if stored.DataHash != res.Entry.DataHash {
		t.Fatalf("stored hash not updated")
	}
	if stored.CachedAt != t0.Add(5*time.Hour).UnixMilli() {
		t.Fatalf("cachedAt not moved to revalidation time: %v", stored.CachedTime())
	}
}

func TestRevalidateDeduplicates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32

	done := make(chan error, 1)
	go func() {
		_, err := s.Revalidate(ctx, "AMD", func(context.Context) (quote, error) {
			atomic.AddInt32(&calls, 1)
			close(started)
			<-release
			return quote{"AMD", 150}, nil
		})
		done <- err
	}()
	<-started

	_, err := s.Revalidate(ctx, "AMD", func(context.Context) (quote, error) {
		atomic.AddInt32(&calls, 1)
		return quote{}, nil
	})
	if !errors.Is(err, ErrRevalidationInFlight) {
		t.Fatalf("second revalidation: want ErrRevalidationInFlight got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first revalidation: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("fetch called %d times", calls)
	}
	if s.Registry().Len() != 0 {
		t.Fatalf("registry not cleared after success")
	}
}

func TestRevalidateReleasesOnFailure(t *testing.T) {
	s, _ := newTestStore(t)
	boom := errors.New("provider down")
	_, err := s.Revalidate(context.Background(), "META", func(context.Context) (quote, error) {
		return quote{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want provider error, got %v", err)
	}
	if s.Registry().Has(s.Key("META")) {
		t.Fatalf("registry must be cleared after failure")
	}
}

func TestRegistryAdmitsExactlyOne(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	var admitted int32
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAcquire("stock:TSLA") {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()
	if admitted != 1 {
		t.Fatalf("admitted %d concurrent callers", admitted)
	}
	r.Release("stock:TSLA")
	if !r.TryAcquire("stock:TSLA") {
		t.Fatalf("key should be acquirable after release")
	}
}

func TestDigestDeterministic(t *testing.T) {
	a, _ := Digest(map[string]float64{"b": 2, "a": 1})
	b, _ := Digest(map[string]float64{"a": 1, "b": 2})
	if a != b {
		t.Fatalf("digest depends on map order")
	}
}

func TestStoreOverRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCache(cache.WithRedisAddr(mr.Addr()), cache.WithRedisPrefix("scanner"))
	defer rc.Close()
	fc := cache.NewFallbackCache(rc, cache.WithPingInterval(time.Hour))
	defer fc.Close()

	s := NewStore[quote](fc, "stock", logger.Nop())
	if _, err := s.Set(context.Background(), "SHOP", quote{"SHOP", 80}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("scanner:stock:SHOP") {
		t.Fatalf("expected key scanner:stock:SHOP in redis, have %v", mr.Keys())
	}
	if ttl := mr.TTL("scanner:stock:SHOP"); ttl != DefaultTTL {
		t.Fatalf("ttl: want 24h got %s", ttl)
	}
	// other stores sharing the cache are not counted
	if err := fc.Set(context.Background(), "universe:symbols", []string{"SHOP"}, time.Hour); err != nil {
		t.Fatalf("set universe: %v", err)
	}
	st := s.Stats(context.Background())
	if !st.RedisAvailable || st.RedisKeys != 1 || st.MemoryCacheSize != 2 {
		t.Fatalf("stats: %+v", st)
	}
}
