package enrichment

import (
	"context"
	"strings"
	"sync"
	"time"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	"QullaScan/pkg/logger"
)

const (
	DefaultConcurrency = 5
	DefaultBatchDelay  = 500 * time.Millisecond
)

// FetchMany enriches symbols in groups of size, pausing delay between groups.
// Failures and empty snapshots are left out of the result.
func FetchMany(ctx context.Context, p repository.EnrichmentProvider, symbols []string, size int, delay time.Duration, log *logger.Logger) map[string]*models.Enrichment {
	out := make(map[string]*models.Enrichment, len(symbols))
	if p == nil || len(symbols) == 0 {
		return out
	}
	if size <= 0 {
		size = DefaultConcurrency
	}

	var mu sync.Mutex
	for i := 0; i < len(symbols); i += size {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(delay):
			}
		}
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}

		var wg sync.WaitGroup
		for _, sym := range symbols[i:end] {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				e, err := p.Fetch(ctx, sym)
				if err != nil {
					if log != nil {
						log.Debug("enrichment skipped", logger.String("symbol", sym), logger.Error(err))
					}
					return
				}
				if e == nil {
					return
				}
				mu.Lock()
				out[strings.ToUpper(sym)] = e
				mu.Unlock()
			}(sym)
		}
		wg.Wait()
	}
	return out
}
