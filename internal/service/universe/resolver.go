package universe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"QullaScan/internal/domain/repository"
	"QullaScan/pkg/cache"
	"QullaScan/pkg/logger"
)

// ErrEmptyUniverse is returned when no source yields a symbol.
var ErrEmptyUniverse = errors.New("universe: no symbols")

// CacheKey is where the resolved list lives in the shared cache.
const CacheKey = "stock_list"

// Source names reported by Resolve.
const (
	SourceCache    = "cache"
	SourceConfig   = "config"
	SourceScreener = "screener"
	SourceFallback = "fallback"
)

// Resolver walks the universe chain: cached list, configured symbols,
// screener, built-in list.
type Resolver struct {
	cache       cache.Service
	ttl         time.Duration
	symbols     []string
	file        string
	screener    repository.UniverseProvider
	minAccepted int
	fallback    []string
	log         *logger.Logger

	mu     sync.RWMutex
	last   []string
	source string
}

type Option func(*Resolver)

// WithStatic adds inline symbols and a newline-separated symbol file.
func WithStatic(symbols []string, file string) Option {
	return func(r *Resolver) {
		r.symbols = symbols
		r.file = file
	}
}

// WithScreener adds a dynamic source; its result is used only when it holds
// at least minAccepted symbols.
func WithScreener(p repository.UniverseProvider, minAccepted int) Option {
	return func(r *Resolver) {
		r.screener = p
		r.minAccepted = minAccepted
	}
}

func WithTTL(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithFallback replaces the built-in list.
func WithFallback(symbols []string) Option {
	return func(r *Resolver) { r.fallback = symbols }
}

func NewResolver(c cache.Service, log *logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		cache:    c,
		ttl:      24 * time.Hour,
		fallback: DefaultSymbols,
		log:      log.With("universe"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Symbols returns the universe, preferring the cached list.
func (r *Resolver) Symbols(ctx context.Context) ([]string, error) {
	syms, _, err := r.resolve(ctx, false)
	return syms, err
}

// Refresh re-resolves the universe ignoring the cached list.
func (r *Resolver) Refresh(ctx context.Context) ([]string, string, error) {
	return r.resolve(ctx, true)
}

// Size is the length of the last resolved universe.
func (r *Resolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.last)
}

// Source names where the last universe came from.
func (r *Resolver) Source() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source
}

func (r *Resolver) resolve(ctx context.Context, force bool) ([]string, string, error) {
	if !force && r.cache != nil {
		var cached []string
		if err := r.cache.Get(ctx, CacheKey, &cached); err == nil {
			if syms := Normalize(cached); len(syms) > 0 {
				return r.remember(syms, SourceCache), SourceCache, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			r.log.Warn("universe cache read failed", logger.Error(err))
		}
	}

	static := append([]string(nil), r.symbols...)
	if r.file != "" {
		fromFile, err := readSymbolFile(r.file)
		if err != nil {
			r.log.Warn("universe file unreadable", logger.String("file", r.file), logger.Error(err))
		}
		static = append(static, fromFile...)
	}
	if syms := Normalize(static); len(syms) > 0 {
		r.store(ctx, syms)
		return r.remember(syms, SourceConfig), SourceConfig, nil
	}

	if r.screener != nil {
		syms, err := r.screener.Symbols(ctx)
		syms = Normalize(syms)
		switch {
		case err != nil:
			r.log.Warn("screener failed, using built-in list", logger.Error(err))
		case len(syms) < r.minAccepted:
			r.log.Warn("screener returned too few symbols",
				logger.Int("count", len(syms)), logger.Int("min", r.minAccepted))
		default:
			r.store(ctx, syms)
			return r.remember(syms, SourceScreener), SourceScreener, nil
		}
	}

	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	syms := Normalize(r.fallback)
	if len(syms) == 0 {
		return nil, "", ErrEmptyUniverse
	}
	return r.remember(syms, SourceFallback), SourceFallback, nil
}

func (r *Resolver) store(ctx context.Context, syms []string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, CacheKey, syms, r.ttl); err != nil {
		r.log.Warn("universe cache write failed", logger.Error(err))
	}
}

func (r *Resolver) remember(syms []string, source string) []string {
	r.mu.Lock()
	r.last, r.source = syms, source
	r.mu.Unlock()
	r.log.Debug("universe resolved", logger.String("source", source), logger.Int("count", len(syms)))
	return syms
}

// Normalize upper-cases, trims and de-duplicates symbols, keeping order.
func Normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// readSymbolFile reads one symbol per line; blank lines and # comments are skipped.
func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, s := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			out = append(out, s)
		}
	}
	return out, sc.Err()
}
