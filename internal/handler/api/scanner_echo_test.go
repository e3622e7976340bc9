package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"QullaScan/internal/domain/models"
	domrepo "QullaScan/internal/domain/repository"
	"QullaScan/internal/service/universe"
	"QullaScan/internal/usecase"
	xhttp "QullaScan/pkg/http"
	"QullaScan/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type fakeService struct {
	mu       sync.Mutex
	lastOpts models.ScanOptions
	scanErr  error
	records  map[string]*models.SymbolRecord
	history  []models.Snapshot
	histErr  error
}

func (f *fakeService) Scan(ctx context.Context, opts models.ScanOptions, out usecase.Emitter) (*models.ScanSummary, error) {
	f.mu.Lock()
	f.lastOpts = opts
	f.mu.Unlock()
	if err := out.Emit(ctx, usecase.Event{Name: usecase.EventStatus, Data: usecase.StatusPayload{Phase: usecase.PhaseInit, Message: "scanner starting"}}); err != nil {
		return nil, err
	}
	if f.scanErr != nil {
		_ = out.Emit(ctx, usecase.Event{Name: usecase.EventError, Data: usecase.ErrorPayload{Message: f.scanErr.Error()}})
		return nil, f.scanErr
	}
	sum := models.ScanSummary{TotalStocks: 1, TotalScanned: 1, FromCache: 1}
	if err := out.Emit(ctx, usecase.Event{Name: usecase.EventComplete, Data: usecase.CompletePayload{ScanSummary: sum}}); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (f *fakeService) List(_ context.Context, opts models.ScanOptions) (*usecase.ScanResult, error) {
	f.mu.Lock()
	f.lastOpts = opts
	f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return &usecase.ScanResult{
		Stocks:      []*models.SymbolRecord{{Symbol: "NVDA", Momentum3M: 60}},
		ScanSummary: models.ScanSummary{TotalStocks: 1, TotalScanned: 3},
	}, nil
}

func (f *fakeService) Symbol(_ context.Context, symbol string, _ bool) (*models.SymbolRecord, bool, error) {
	rec, ok := f.records[strings.ToUpper(symbol)]
	if !ok {
		return nil, false, fmt.Errorf("quote %s: %w", symbol, domrepo.ErrSymbolNotFound)
	}
	return rec, true, nil
}

func (f *fakeService) ProxyPlays(_ context.Context, symbol string) ([]string, error) {
	if _, ok := f.records[strings.ToUpper(symbol)]; !ok {
		return nil, usecase.ErrSymbolNotCached
	}
	return []string{"AMD"}, nil
}

func (f *fakeService) Stats(context.Context) usecase.Stats {
	return usecase.Stats{UniverseSize: 42}
}

func (f *fakeService) RefreshUniverse(context.Context) ([]string, string, error) {
	return []string{"AAPL", "NVDA"}, "file", nil
}

func (f *fakeService) History(_ context.Context, symbol string, limit int) ([]models.Snapshot, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

type fakeScheduler struct {
	symbols []string
	accept  bool
}

func (s *fakeScheduler) Schedule(_ context.Context, symbols []string, _ string) bool {
	s.symbols = symbols
	return s.accept
}

func newTestServer(svc ScanService, sched usecase.Scheduler, checks ...HealthCheck) *echo.Echo {
	h := NewScannerEchoHandler(logger.Nop(), svc, sched, checks...)
	h.SetHeartbeat(0)
	e := echo.New()
	e.HTTPErrorHandler = xhttp.ErrorHandler(logger.Nop())
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) xhttp.APIResponse {
	t.Helper()
	raw := struct {
		Status  int             `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	if data != nil {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", raw.Data, err)
		}
	}
	return xhttp.APIResponse{Status: raw.Status, Message: raw.Message}
}

func TestStreamWritesSSEFrames(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc, nil)

	rec := do(e, http.MethodGet, "/scan/stream?refresh=true&type=ep&batchSize=40", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: status\ndata: {") {
		t.Fatalf("first frame: %q", body)
	}
	if !strings.Contains(body, "\n\nevent: complete\ndata: {") || !strings.HasSuffix(body, "}\n\n") {
		t.Fatalf("complete frame missing: %q", body)
	}
	if strings.Index(body, "event: status") > strings.Index(body, "event: complete") {
		t.Fatalf("complete must be last: %q", body)
	}
	if !svc.lastOpts.ForceRefresh || svc.lastOpts.Type != models.ScanEP || svc.lastOpts.BatchSize != 40 {
		t.Fatalf("options: %+v", svc.lastOpts)
	}
}

func TestStreamDefaultsAndValidation(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc, nil)

	if rec := do(e, http.MethodGet, "/scan/stream", ""); rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if svc.lastOpts.BatchSize != 25 || svc.lastOpts.Type != models.ScanAll {
		t.Fatalf("defaults: %+v", svc.lastOpts)
	}

	rec := do(e, http.MethodGet, "/scan/stream?batchSize=500", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("batchSize 500: want 400 got %d", rec.Code)
	}
	var errs []xhttp.ValidationError
	decode(t, rec, &errs)
	if len(errs) != 1 || errs[0].Code != "ERR_LTE" {
		t.Fatalf("validation errors: %+v", errs)
	}
}

func TestStreamErrorEventOnUniverseFailure(t *testing.T) {
	e := newTestServer(&fakeService{scanErr: errors.New("universe: no symbols")}, nil)
	rec := do(e, http.MethodGet, "/scan/stream", "")
	body := rec.Body.String()
	if !strings.Contains(body, "event: error\ndata: {\"message\":\"universe: no symbols\"}") {
		t.Fatalf("error frame: %q", body)
	}
	if strings.Contains(body, "event: complete") {
		t.Fatalf("no complete after error: %q", body)
	}
}

func TestWebSocketSendsEvents(t *testing.T) {
	srv := httptest.NewServer(newTestServer(&fakeService{}, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/scan/ws?type=1m"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var names []string
	for {
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read: %v", err)
			}
			break
		}
		names = append(names, msg.Event)
	}
	if len(names) != 2 || names[0] != "status" || names[1] != "complete" {
		t.Fatalf("events: %v", names)
	}
}

func TestSymbolLookup(t *testing.T) {
	svc := &fakeService{records: map[string]*models.SymbolRecord{"NVDA": {Symbol: "NVDA", RSRating: 91}}}
	e := newTestServer(svc, nil)

	rec := do(e, http.MethodGet, "/scan/symbol/nvda", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	var got SymbolResponse
	decode(t, rec, &got)
	if got.Stock == nil || got.Stock.RSRating != 91 || !got.FromCache {
		t.Fatalf("body: %+v", got)
	}
	if rec.Header().Get(echo.HeaderCacheControl) == "" {
		t.Fatalf("cached lookup should set Cache-Control")
	}

	rec = do(e, http.MethodGet, "/scan/symbol/ZZZZ", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown symbol: want 404 got %d", rec.Code)
	}
	var errs []xhttp.AppError
	decode(t, rec, &errs)
	if len(errs) != 1 || errs[0].Code != "ERR_NOT_FOUND" {
		t.Fatalf("error body: %+v", errs)
	}
}

func TestProxyLookup(t *testing.T) {
	svc := &fakeService{records: map[string]*models.SymbolRecord{"NVDA": {Symbol: "NVDA"}}}
	e := newTestServer(svc, nil)

	rec := do(e, http.MethodGet, "/scan/proxy/nvda", "")
	var got ProxyResponse
	decode(t, rec, &got)
	if rec.Code != http.StatusOK || got.Symbol != "NVDA" || len(got.ProxyPlays) != 1 {
		t.Fatalf("proxy: %d %+v", rec.Code, got)
	}
	if rec := do(e, http.MethodGet, "/scan/proxy/TSLA", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("uncached symbol: want 404 got %d", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	svc := &fakeService{history: []models.Snapshot{{Symbol: "AAPL"}, {Symbol: "AAPL"}, {Symbol: "AAPL"}}}
	e := newTestServer(svc, nil)

	rec := do(e, http.MethodGet, "/scan/history?symbol=AAPL&limit=2", "")
	var got xhttp.ListDataResponse
	decode(t, rec, &got)
	if rec.Code != http.StatusOK || got.Total != 2 {
		t.Fatalf("history: %d %+v", rec.Code, got)
	}

	if rec := do(e, http.MethodGet, "/scan/history", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing symbol: want 400 got %d", rec.Code)
	}

	svc.histErr = usecase.ErrArchiveDisabled
	if rec := do(e, http.MethodGet, "/scan/history?symbol=AAPL", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("archive disabled: want 503 got %d", rec.Code)
	}
}

func TestRevalidate(t *testing.T) {
	sched := &fakeScheduler{accept: true}
	e := newTestServer(&fakeService{}, sched)

	rec := do(e, http.MethodPost, "/scan/revalidate", `{"symbols":["aapl"," AAPL ","msft"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	var got RevalidateResponse
	decode(t, rec, &got)
	if got.Accepted != 2 || len(sched.symbols) != 2 || sched.symbols[0] != "AAPL" || sched.symbols[1] != "MSFT" {
		t.Fatalf("scheduled %v, body %+v", sched.symbols, got)
	}

	if rec := do(e, http.MethodPost, "/scan/revalidate", `{"symbols":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty list: want 400 got %d", rec.Code)
	}

	sched.accept = false
	if rec := do(e, http.MethodPost, "/scan/revalidate", `{"symbols":["AMD"]}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("queue full: want 503 got %d", rec.Code)
	}
}

func TestRefreshUniverseRateLimited(t *testing.T) {
	e := newTestServer(&fakeService{}, nil)

	rec := do(e, http.MethodPost, "/scan/universe/refresh", "")
	var got UniverseResponse
	decode(t, rec, &got)
	if rec.Code != http.StatusOK || got.Count != 2 || got.Source != "file" {
		t.Fatalf("refresh: %d %+v", rec.Code, got)
	}
	if rec := do(e, http.MethodPost, "/scan/universe/refresh", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second refresh: want 429 got %d", rec.Code)
	}
}

func TestStatsAndHealth(t *testing.T) {
	e := newTestServer(&fakeService{}, nil,
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		HealthCheck{Name: "universe", Check: func(context.Context) error { return nil }, Critical: true},
	)

	rec := do(e, http.MethodGet, "/scan/stats", "")
	var st usecase.Stats
	decode(t, rec, &st)
	if st.UniverseSize != 42 {
		t.Fatalf("stats: %+v", st)
	}

	rec = do(e, http.MethodGet, "/health", "")
	var h HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if rec.Code != http.StatusOK || h.Status != "degraded" || h.Checks["redis"] != "connection refused" || h.Checks["universe"] != "ok" {
		t.Fatalf("health: %d %+v", rec.Code, h)
	}
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domrepo.ErrSymbolNotFound), http.StatusNotFound},
		{usecase.ErrNoScanYet, http.StatusNotFound},
		{fmt.Errorf("chart: %w", domrepo.ErrRateLimited), http.StatusTooManyRequests},
		{errTooManyRequests, http.StatusTooManyRequests},
		{errQueueFull, http.StatusServiceUnavailable},
		{errNewsDisabled, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := toAppError(tt.err).Status; got != tt.want {
			t.Fatalf("%v: want %d got %d", tt.err, tt.want, got)
		}
	}
}

func TestListScan(t *testing.T) {
	tests := []struct {
		query string
		want  models.ScanType
	}{
		{"", models.ScanAll},
		{"?type=rs", models.ScanRS},
		{"?type=momentum&period=3m", models.Scan3M},
		{"?type=momentum&period=1y", models.ScanAll},
	}
	for _, tt := range tests {
		svc := &fakeService{}
		e := newTestServer(svc, nil)
		rec := do(e, http.MethodGet, "/scan"+tt.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: status %d %s", tt.query, rec.Code, rec.Body.String())
		}
		var res usecase.ScanResult
		decode(t, rec, &res)
		if len(res.Stocks) != 1 || res.Stocks[0].Symbol != "NVDA" || res.TotalScanned != 3 {
			t.Fatalf("%q: body %+v", tt.query, res)
		}
		if svc.lastOpts.Type != tt.want {
			t.Fatalf("%q: type %q, want %q", tt.query, svc.lastOpts.Type, tt.want)
		}
	}
}

func TestListScanStatsAndErrors(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc, nil)

	rec := do(e, http.MethodGet, "/scan?stats=true", "")
	var st usecase.Stats
	decode(t, rec, &st)
	if rec.Code != http.StatusOK || st.UniverseSize != 42 {
		t.Fatalf("stats: %d %+v", rec.Code, st)
	}
	if svc.lastOpts.Type != "" {
		t.Fatalf("stats must not start a scan: %+v", svc.lastOpts)
	}

	if rec := do(e, http.MethodGet, "/scan?batchSize=500", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("batch size: %d", rec.Code)
	}

	svc.scanErr = fmt.Errorf("resolve universe: %w", universe.ErrEmptyUniverse)
	if rec := do(e, http.MethodGet, "/scan", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("universe failure: %d %s", rec.Code, rec.Body.String())
	}
}

type fakeNews struct {
	items []models.NewsItem
	err   error
	got   string
}

func (f *fakeNews) News(_ context.Context, symbol string) ([]models.NewsItem, error) {
	f.got = symbol
	return f.items, f.err
}

func TestNews(t *testing.T) {
	published := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		news *fakeNews
		code int
		want int
	}{
		{"headlines", &fakeNews{items: []models.NewsItem{{Title: "Blowout quarter", PublishedAt: published}}}, http.StatusOK, 1},
		{"provider down", &fakeNews{err: errors.New("connection reset")}, http.StatusOK, 0},
		{"disabled", nil, http.StatusServiceUnavailable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewScannerEchoHandler(logger.Nop(), &fakeService{}, nil)
			if tt.news != nil {
				h.SetNews(tt.news)
			}
			e := echo.New()
			e.HTTPErrorHandler = xhttp.ErrorHandler(logger.Nop())
			h.RegisterRoutes(e)

			rec := do(e, http.MethodGet, "/scan/news/nvda", "")
			if rec.Code != tt.code {
				t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
			}
			if tt.code != http.StatusOK {
				return
			}
			var res NewsResponse
			decode(t, rec, &res)
			if res.Symbol != "NVDA" || tt.news.got != "NVDA" || res.News == nil || len(res.News) != tt.want {
				t.Fatalf("body: %+v", res)
			}
			if tt.want > 0 && !res.News[0].PublishedAt.Equal(published) {
				t.Fatalf("published: %s", res.News[0].PublishedAt)
			}
		})
	}
}
