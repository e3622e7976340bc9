package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"QullaScan/internal/domain/models"
)

// Event names, in the order a client sees them.
const (
	EventStatus   = "status"
	EventCached   = "cached"
	EventBatch    = "batch"
	EventError    = "error"
	EventComplete = "complete"
)

// Status phases.
const (
	PhaseInit             = "init"
	PhaseBenchmarkLoading = "benchmark_loading"
	PhaseBenchmarkLoaded  = "benchmark_loaded"
	PhaseSymbolsLoaded    = "symbols_loaded"
	PhaseCacheCheck       = "cache_check"
	PhaseFetching         = "fetching"
	PhaseRevalidation     = "background_revalidation"
)

// Event is one frame of a scan stream.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// Emitter receives scan events in order. An error from Emit ends the scan;
// transports return one when the client has gone away.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, e Event) error

func (f EmitterFunc) Emit(ctx context.Context, e Event) error { return f(ctx, e) }

// Discard drops every event; used by headless scans.
var Discard Emitter = EmitterFunc(func(context.Context, Event) error { return nil })

// Recorder keeps every emitted event.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names lists the recorded event names.
func (r *Recorder) Names() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Name
	}
	return out
}

// Records collects the stocks carried by cached and batch events, in the
// order they were emitted.
func (r *Recorder) Records() []*models.SymbolRecord {
	var out []*models.SymbolRecord
	for _, e := range r.Events() {
		switch p := e.Data.(type) {
		case CachedPayload:
			out = append(out, p.Stocks...)
		case BatchPayload:
			out = append(out, p.Stocks...)
		}
	}
	return out
}

type StatusPayload struct {
	Phase     string     `json:"phase"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Total     *int       `json:"total,omitempty"`
	Cached    *int       `json:"cached,omitempty"`
	ToFetch   *int       `json:"toFetch,omitempty"`
	Count     *int       `json:"count,omitempty"`
}

type SentProgress struct {
	Sent  int `json:"sent"`
	Total int `json:"total"`
}

type CachedPayload struct {
	Stocks   []*models.SymbolRecord `json:"stocks"`
	Count    int                    `json:"count"`
	Progress SentProgress           `json:"progress"`
	Message  string                 `json:"message"`
}

type BatchProgress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

type BatchPayload struct {
	Stocks   []*models.SymbolRecord `json:"stocks"`
	Progress BatchProgress          `json:"progress"`
}

type ErrorPayload struct {
	Message string   `json:"message"`
	Symbols []string `json:"symbols,omitempty"`
}

// CompletePayload is the scan summary plus the proxy plays resolved after all
// records were known.
type CompletePayload struct {
	models.ScanSummary
	ProxyPlays map[string][]string `json:"proxyPlays,omitempty"`
}

func intp(v int) *int { return &v }

// stream wraps an Emitter and remembers the first failure so the
// orchestrator can stop at the next checkpoint.
type stream struct {
	out Emitter
	err error
}

func (s *stream) emit(ctx context.Context, name string, data interface{}) bool {
	if s.err != nil {
		return false
	}
	s.err = s.out.Emit(ctx, Event{Name: name, Data: data})
	return s.err == nil
}

func (s *stream) status(ctx context.Context, p StatusPayload) bool {
	return s.emit(ctx, EventStatus, p)
}

// cachedChunks sends records in chunks of size, each carrying running
// progress over the full filtered set.
func (s *stream) cachedChunks(ctx context.Context, records []*models.SymbolRecord, size int) bool {
	if size <= 0 {
		size = 50
	}
	total := len(records)
	for lo := 0; lo < total; lo += size {
		hi := lo + size
		if hi > total {
			hi = total
		}
		ok := s.emit(ctx, EventCached, CachedPayload{
			Stocks:   records[lo:hi],
			Count:    total,
			Progress: SentProgress{Sent: hi, Total: total},
			Message:  fmt.Sprintf("%d/%d from cache", hi, total),
		})
		if !ok {
			return false
		}
	}
	return true
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(float64(done)/float64(total)*100 + 0.5)
}
