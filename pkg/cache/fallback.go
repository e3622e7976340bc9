package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// FallbackCache puts an in-process MemoryCache behind a remote primary.
//
// Every write lands in memory. Writes and reads go to the primary only while
// it is marked available; the first primary error flips it to unavailable and
// the cache keeps serving from memory until a background ping succeeds again.
// Primary errors are never returned to callers. Keys written or deleted
// while the primary is down are replayed from memory once it is back.
type FallbackCache struct {
	primary   Service
	memory    *MemoryCache
	available atomic.Bool
	cfg       *FallbackConfig

	pendingMu sync.Mutex
	pending   map[string]time.Duration // key -> expiration of the last write, 0 for deletes

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewFallbackCache builds the tiered cache. primary may be nil, in which case
// only the memory tier is used and Stats reports the primary as unavailable.
func NewFallbackCache(primary Service, opts ...FallbackOption) *FallbackCache {
	cfg := &FallbackConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fc := &FallbackCache{
		primary: primary,
		memory:  NewMemoryCache(cfg.Memory...),
		cfg:     cfg,
		pending: make(map[string]time.Duration),
		stop:    make(chan struct{}),
	}

	if primary != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
		err := primary.Ping(ctx)
		cancel()
		fc.available.Store(err == nil)
		if err != nil {
			fc.notify(false, err)
		}

		fc.wg.Add(1)
		go fc.healthLoop()
	}
	return fc
}

// Available reports whether the primary tier is currently in use.
func (fc *FallbackCache) Available() bool {
	return fc.primary != nil && fc.available.Load()
}

// Memory exposes the in-process tier.
func (fc *FallbackCache) Memory() *MemoryCache {
	return fc.memory
}

func (fc *FallbackCache) Ping(ctx context.Context) error {
	if fc.primary == nil {
		return ErrUnavailable
	}
	err := fc.primary.Ping(ctx)
	if fc.setAvailable(err == nil, err) && err == nil {
		fc.resync(ctx)
	}
	return err
}

// Pending is the number of keys waiting to be replayed to the primary.
func (fc *FallbackCache) Pending() int {
	fc.pendingMu.Lock()
	defer fc.pendingMu.Unlock()
	return len(fc.pending)
}

func (fc *FallbackCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	_ = fc.memory.Set(ctx, key, data, expiration)

	if !fc.Available() {
		fc.markPending(expiration, key)
		return nil
	}
	if err := fc.primary.Set(ctx, key, data, expiration); err != nil {
		fc.primaryFailed(err)
		fc.markPending(expiration, key)
	}
	return nil
}

func (fc *FallbackCache) Get(ctx context.Context, key string, dest interface{}) error {
	if fc.Available() {
		err := fc.primary.Get(ctx, key, dest)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrCacheMiss), errors.Is(err, ErrDecode):
		default:
			fc.primaryFailed(err)
		}
	}
	return fc.memory.Get(ctx, key, dest)
}

func (fc *FallbackCache) Delete(ctx context.Context, keys ...string) error {
	_ = fc.memory.Delete(ctx, keys...)
	if !fc.Available() {
		fc.markPending(0, keys...)
		return nil
	}
	if err := fc.primary.Delete(ctx, keys...); err != nil {
		fc.primaryFailed(err)
		fc.markPending(0, keys...)
	}
	return nil
}

func (fc *FallbackCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	encoded := make(map[string]interface{}, len(values))
	for key, value := range values {
		data, err := encode(value)
		if err != nil {
			return err
		}
		encoded[key] = data
	}
	_ = fc.memory.MSet(ctx, encoded, expiration)

	keys := make([]string, 0, len(encoded))
	for key := range encoded {
		keys = append(keys, key)
	}
	if !fc.Available() {
		fc.markPending(expiration, keys...)
		return nil
	}
	if err := fc.primary.MSet(ctx, encoded, expiration); err != nil {
		fc.primaryFailed(err)
		fc.markPending(expiration, keys...)
	}
	return nil
}

// MGet returns primary hits and fills the gaps from memory.
func (fc *FallbackCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	missing := keys

	if fc.Available() {
		hits, err := fc.primary.MGet(ctx, keys...)
		if err != nil {
			fc.primaryFailed(err)
		} else {
			result = hits
			missing = make([]string, 0, len(keys)-len(hits))
			for _, k := range keys {
				if _, ok := hits[k]; !ok {
					missing = append(missing, k)
				}
			}
		}
	}

	if len(missing) > 0 {
		mem, _ := fc.memory.MGet(ctx, missing...)
		for k, v := range mem {
			result[k] = v
		}
	}
	return result, nil
}

func (fc *FallbackCache) Count(ctx context.Context, pattern string) (int64, error) {
	if fc.Available() {
		n, err := fc.primary.Count(ctx, pattern)
		if err == nil {
			return n, nil
		}
		fc.primaryFailed(err)
	}
	return fc.memory.Count(ctx, pattern)
}

// Stats reports tier health. RedisKeys counts primary keys matching pattern
// and stays 0 while the primary is down.
func (fc *FallbackCache) Stats(ctx context.Context, pattern string) Stats {
	st := Stats{
		RedisAvailable:  fc.Available(),
		MemoryCacheSize: fc.memory.Len(),
	}
	if st.RedisAvailable {
		if n, err := fc.primary.Count(ctx, pattern); err == nil {
			st.RedisKeys = n
		}
	}
	return st
}

// Close stops the health loop and the memory sweeper. The primary is owned by
// the caller and left open.
func (fc *FallbackCache) Close() error {
	fc.stopOnce.Do(func() {
		close(fc.stop)
	})
	fc.wg.Wait()
	return fc.memory.Close()
}

func (fc *FallbackCache) primaryFailed(err error) {
	fc.setAvailable(false, err)
}

// setAvailable reports whether the state changed.
func (fc *FallbackCache) setAvailable(ok bool, err error) bool {
	if fc.available.Swap(ok) == ok {
		return false
	}
	fc.notify(ok, err)
	return true
}

func (fc *FallbackCache) markPending(expiration time.Duration, keys ...string) {
	if fc.primary == nil {
		return
	}
	fc.pendingMu.Lock()
	for _, key := range keys {
		fc.pending[key] = expiration
	}
	fc.pendingMu.Unlock()
}

// resync copies keys touched during the outage from memory to the primary,
// so an older primary copy never shadows a newer memory write. Keys gone from
// memory are deleted on the primary. Keys that fail stay pending.
func (fc *FallbackCache) resync(ctx context.Context) {
	fc.pendingMu.Lock()
	batch := fc.pending
	fc.pending = make(map[string]time.Duration, len(batch))
	fc.pendingMu.Unlock()
	if len(batch) == 0 {
		return
	}

	var failed []string
	for key, expiration := range batch {
		var data []byte
		var err error
		switch merr := fc.memory.Get(ctx, key, &data); {
		case merr == nil:
			err = fc.primary.Set(ctx, key, data, expiration)
		case errors.Is(merr, ErrCacheMiss):
			err = fc.primary.Delete(ctx, key)
		}
		if err != nil {
			failed = append(failed, key)
			fc.pendingMu.Lock()
			if _, newer := fc.pending[key]; !newer {
				fc.pending[key] = expiration
			}
			fc.pendingMu.Unlock()
		}
	}
	if len(failed) > 0 {
		fc.primaryFailed(fmt.Errorf("resync %d keys: %w", len(failed), ErrUnavailable))
	}
}

func (fc *FallbackCache) notify(ok bool, err error) {
	if fc.cfg.OnAvailabilityChange != nil {
		fc.cfg.OnAvailabilityChange(ok, err)
	}
}

func (fc *FallbackCache) healthLoop() {
	defer fc.wg.Done()

	ticker := time.NewTicker(fc.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), fc.cfg.PingTimeout)
			_ = fc.Ping(ctx)
			cancel()
		case <-fc.stop:
			return
		}
	}
}
