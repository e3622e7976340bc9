package swr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"QullaScan/pkg/cache"
	"QullaScan/pkg/logger"
)

var ErrRevalidationInFlight = errors.New("swr: revalidation already in flight")

const (
	DefaultStaleAfter = 4 * time.Hour
	DefaultTTL        = 24 * time.Hour
)

// StatsSource is implemented by caches that can report tier health.
type StatsSource interface {
	Stats(ctx context.Context, pattern string) cache.Stats
}

// Store is a stale-while-revalidate view over a cache.Service for values of
// type T. Keys are namespaced under prefix.
type Store[T any] struct {
	cache      cache.Service
	prefix     string
	ttl        time.Duration
	staleAfter time.Duration
	registry   *Registry
	log        *logger.Logger
	now        func() time.Time
}

type Option[T any] func(*Store[T])

// WithTTL sets the store-level expiry of every entry.
func WithTTL[T any](d time.Duration) Option[T] {
	return func(s *Store[T]) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithStaleAfter sets the age beyond which an entry needs revalidation.
func WithStaleAfter[T any](d time.Duration) Option[T] {
	return func(s *Store[T]) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Store[T]) {
		s.now = now
	}
}

// WithRegistry shares a registry between stores.
func WithRegistry[T any](r *Registry) Option[T] {
	return func(s *Store[T]) {
		s.registry = r
	}
}

func NewStore[T any](c cache.Service, prefix string, log *logger.Logger, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		cache:      c,
		prefix:     prefix,
		ttl:        DefaultTTL,
		staleAfter: DefaultStaleAfter,
		registry:   NewRegistry(),
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the cache key for id.
func (s *Store[T]) Key(id string) string {
	return cache.SymbolKey(s.prefix, id)
}

// Registry exposes the in-flight set.
func (s *Store[T]) Registry() *Registry {
	return s.registry
}

// NeedsRevalidation is true once the entry is strictly older than the
// staleness threshold.
func (s *Store[T]) NeedsRevalidation(cachedAt time.Time) bool {
	return s.now().Sub(cachedAt) > s.staleAfter
}

// Get returns the entry for id. Unreadable entries count as misses.
func (s *Store[T]) Get(ctx context.Context, id string) (*Entry[T], bool) {
	var e Entry[T]
	if err := s.cache.Get(ctx, s.Key(id), &e); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("swr get failed", logger.String("key", s.Key(id)), logger.Error(err))
		}
		return nil, false
	}
	return &e, true
}

// GetMany reads ids in one round trip. Missing or corrupt entries are absent
// from the result.
func (s *Store[T]) GetMany(ctx context.Context, ids []string) map[string]*Entry[T] {
	out := make(map[string]*Entry[T], len(ids))
	if len(ids) == 0 {
		return out
	}

	keys := make([]string, len(ids))
	byKey := make(map[string]string, len(ids))
	for i, id := range ids {
		keys[i] = s.Key(id)
		byKey[keys[i]] = id
	}

	raw, err := s.cache.MGet(ctx, keys...)
	if err != nil {
		s.log.Warn("swr mget failed", logger.Int("keys", len(keys)), logger.Error(err))
		return out
	}
	for k, v := range raw {
		var e Entry[T]
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			s.log.Debug("swr entry corrupt", logger.String("key", k), logger.Error(err))
			continue
		}
		out[byKey[k]] = &e
	}
	return out
}

// Set replaces the entry for id with value stamped now.
func (s *Store[T]) Set(ctx context.Context, id string, value T) (*Entry[T], error) {
	e, err := NewEntry(value, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, s.Key(id), e, s.ttl); err != nil {
		return nil, fmt.Errorf("swr set %s: %w", id, err)
	}
	return e, nil
}

// Result describes a completed revalidation.
type Result[T any] struct {
	Entry   *Entry[T]
	OldHash string
	Changed bool
}

// Revalidate refetches id unless another refresh of it is running, in which
// case it returns ErrRevalidationInFlight at once. A successful fetch always
// overwrites the entry; Changed tells whether the digest moved.
func (s *Store[T]) Revalidate(ctx context.Context, id string, fetch func(context.Context) (T, error)) (*Result[T], error) {
	key := s.Key(id)
	if !s.registry.TryAcquire(key) {
		return nil, ErrRevalidationInFlight
	}
	defer s.registry.Release(key)

	var oldHash string
	if old, ok := s.Get(ctx, id); ok {
		oldHash = old.DataHash
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.Set(ctx, id, value)
	if err != nil {
		return nil, err
	}
	return &Result[T]{Entry: e, OldHash: oldHash, Changed: oldHash != e.DataHash}, nil
}

// Stats reports the backing cache's health when it can. RedisKeys counts
// only this store's keys.
func (s *Store[T]) Stats(ctx context.Context) cache.Stats {
	if src, ok := s.cache.(StatsSource); ok {
		return src.Stats(ctx, cache.BuildPattern(s.prefix+":"))
	}
	return cache.Stats{}
}
