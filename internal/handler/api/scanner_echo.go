package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"QullaScan/internal/domain/models"
	domrepo "QullaScan/internal/domain/repository"
	"QullaScan/internal/service/metrics"
	"QullaScan/internal/service/ratelimit"
	"QullaScan/internal/service/universe"
	"QullaScan/internal/usecase"
	xhttp "QullaScan/pkg/http"
	xlogger "QullaScan/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// ScanService is what the scanner endpoints need from the orchestrator.
type ScanService interface {
	Scan(ctx context.Context, opts models.ScanOptions, out usecase.Emitter) (*models.ScanSummary, error)
	List(ctx context.Context, opts models.ScanOptions) (*usecase.ScanResult, error)
	Symbol(ctx context.Context, symbol string, refresh bool) (*models.SymbolRecord, bool, error)
	ProxyPlays(ctx context.Context, symbol string) ([]string, error)
	Stats(ctx context.Context) usecase.Stats
	RefreshUniverse(ctx context.Context) ([]string, string, error)
	History(ctx context.Context, symbol string, limit int) ([]models.Snapshot, error)
}

// HealthCheck is one dependency check reported by /health.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool // a failing critical check turns /health into 503
}

// ScannerEchoHandler serves the scan stream and the lookup endpoints.
type ScannerEchoHandler struct {
	logger    *xlogger.Logger
	svc       ScanService
	sched     usecase.Scheduler
	news      domrepo.NewsProvider
	checks    []HealthCheck
	rl        *ratelimit.Limiter
	upgrader  websocket.Upgrader
	heartbeat time.Duration
	wsWrite   time.Duration
}

func NewScannerEchoHandler(logger *xlogger.Logger, svc ScanService, sched usecase.Scheduler, checks ...HealthCheck) *ScannerEchoHandler {
	metrics.Register()
	return &ScannerEchoHandler{
		logger: logger.With("scanner-api"),
		svc:    svc,
		sched:  sched,
		checks: checks,
		rl:     ratelimit.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			// CORS middleware already filters origins for the rest of the API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		heartbeat: 15 * time.Second,
		wsWrite:   10 * time.Second,
	}
}

// SetHeartbeat changes the SSE keep-alive interval; 0 disables it.
func (h *ScannerEchoHandler) SetHeartbeat(d time.Duration) { h.heartbeat = d }

// SetNews enables /scan/news/:symbol.
func (h *ScannerEchoHandler) SetNews(p domrepo.NewsProvider) { h.news = p }

func (h *ScannerEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/scan")
	g.GET("", h.List)
	g.GET("/stream", h.Stream)
	g.GET("/ws", h.WebSocket)
	g.GET("/symbol/:symbol", h.Symbol)
	g.GET("/proxy/:symbol", h.Proxy)
	g.GET("/stats", h.Stats)
	g.GET("/history", h.History)
	g.GET("/news/:symbol", h.News)
	g.POST("/universe/refresh", h.RefreshUniverse)
	g.POST("/revalidate", h.Revalidate)
}

// Stream runs a scan and writes its events as Server-Sent Events.
func (h *ScannerEchoHandler) Stream(c echo.Context) error {
	req := &models.ScanStreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	em := newSSEEmitter(c.Response())
	em.heartbeat(h.heartbeat)
	defer em.close()

	h.run(ctx, transportSSE, req, em)
	return nil
}

// WebSocket runs a scan and sends the same events as JSON messages.
func (h *ScannerEchoHandler) WebSocket(c echo.Context) error {
	req := &models.ScanStreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already answered the client
		h.logger.Debug("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	defer cancel()
	watchClose(conn, cancel)

	h.run(ctx, transportWS, req, &wsEmitter{conn: conn, writeTimeout: h.wsWrite})

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan finished"),
		time.Now().Add(time.Second))
	return nil
}

func (h *ScannerEchoHandler) run(ctx context.Context, transport string, req *models.ScanStreamRequest, out usecase.Emitter) {
	start := time.Now()
	metrics.ActiveStreams.WithLabelValues(transport).Inc()
	defer metrics.ActiveStreams.WithLabelValues(transport).Dec()

	result := "complete"
	_, err := h.svc.Scan(ctx, req.Options(), out)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		result = "client_gone"
		h.logger.Info("scan stream closed by client", xlogger.String("transport", transport))
	default:
		result = "error"
		h.logger.Error("scan stream failed", xlogger.String("transport", transport), xlogger.Error(err))
	}
	metrics.StreamDuration.WithLabelValues(transport, result).Observe(time.Since(start).Seconds())
}

// List runs a scan and answers with every matching record at once.
func (h *ScannerEchoHandler) List(c echo.Context) error {
	req := &models.ScanListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Stats {
		return xhttp.SuccessResponse(c, h.svc.Stats(c.Request().Context()))
	}

	start := time.Now()
	res, err := h.svc.List(c.Request().Context(), req.Options())
	if err != nil {
		metrics.StreamDuration.WithLabelValues(transportJSON, "error").Observe(time.Since(start).Seconds())
		return h.fail(c, "scan", err)
	}
	metrics.StreamDuration.WithLabelValues(transportJSON, "complete").Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, res)
}

// SymbolResponse is the body of /scan/symbol/:symbol.
type SymbolResponse struct {
	Stock     *models.SymbolRecord `json:"stock"`
	FromCache bool                 `json:"fromCache"`
}

func (h *ScannerEchoHandler) Symbol(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, fromCache, err := h.svc.Symbol(c.Request().Context(), req.Symbol, req.Refresh)
	if err != nil {
		return h.fail(c, "symbol", err)
	}
	if fromCache {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	}
	return xhttp.SuccessResponse(c, SymbolResponse{Stock: rec, FromCache: fromCache})
}

// ProxyResponse is the body of /scan/proxy/:symbol.
type ProxyResponse struct {
	Symbol     string   `json:"symbol"`
	ProxyPlays []string `json:"proxyPlays"`
}

func (h *ScannerEchoHandler) Proxy(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	peers, err := h.svc.ProxyPlays(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "proxy", err)
	}
	if peers == nil {
		peers = []string{}
	}
	return xhttp.SuccessResponse(c, ProxyResponse{Symbol: strings.ToUpper(strings.TrimSpace(req.Symbol)), ProxyPlays: peers})
}

func (h *ScannerEchoHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.Stats(c.Request().Context()))
}

// NewsResponse is the body of /scan/news/:symbol.
type NewsResponse struct {
	Symbol    string            `json:"symbol"`
	News      []models.NewsItem `json:"news"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

// News returns recent headlines. A provider failure yields an empty list.
func (h *ScannerEchoHandler) News(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.news == nil {
		return h.fail(c, "news", errNewsDisabled)
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	items, err := h.news.News(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Warn("news unavailable", xlogger.String("symbol", symbol), xlogger.Error(err))
		items = nil
	}
	if items == nil {
		items = []models.NewsItem{}
	}
	return xhttp.SuccessResponse(c, NewsResponse{Symbol: symbol, News: items, FetchedAt: time.Now().UTC()})
}

// UniverseResponse is the body of /scan/universe/refresh.
type UniverseResponse struct {
	Count  int    `json:"count"`
	Source string `json:"source"`
}

func (h *ScannerEchoHandler) RefreshUniverse(c echo.Context) error {
	// one refresh per 30s, the screener is quota limited
	if !h.rl.Allow("universe_refresh", 1, 1.0/30) {
		return h.fail(c, "universe_refresh", errTooManyRequests)
	}

	symbols, source, err := h.svc.RefreshUniverse(c.Request().Context())
	if err != nil {
		return h.fail(c, "universe_refresh", err)
	}
	h.logger.Info("universe refreshed", xlogger.Int("symbols", len(symbols)), xlogger.String("source", source))
	return xhttp.SuccessResponse(c, UniverseResponse{Count: len(symbols), Source: source})
}

func (h *ScannerEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.svc.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	if rows == nil {
		rows = []models.Snapshot{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// RevalidateResponse is the body of /scan/revalidate.
type RevalidateResponse struct {
	Accepted int `json:"accepted"`
}

func (h *ScannerEchoHandler) Revalidate(c echo.Context) error {
	req := &models.RevalidateHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.sched == nil {
		return h.fail(c, "revalidate", errRevalidationDisabled)
	}
	if !h.rl.Allow("revalidate", 10, 1) {
		return h.fail(c, "revalidate", errTooManyRequests)
	}

	symbols := universe.Normalize(req.Symbols)
	if !h.sched.Schedule(context.WithoutCancel(c.Request().Context()), symbols, "api") {
		return h.fail(c, "revalidate", errQueueFull)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, RevalidateResponse{Accepted: len(symbols)})
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

func (h *ScannerEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	res := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks)), Time: time.Now().UTC()}
	code := http.StatusOK
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			res.Checks[chk.Name] = err.Error()
			if chk.Critical {
				res.Status = "down"
				code = http.StatusServiceUnavailable
			} else if res.Status == "ok" {
				res.Status = "degraded"
			}
			continue
		}
		res.Checks[chk.Name] = "ok"
	}
	return c.JSON(code, res)
}

func (h *ScannerEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
