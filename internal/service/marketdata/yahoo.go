package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	"QullaScan/internal/service/ratelimit"
	xhttp "QullaScan/pkg/http"
	"QullaScan/pkg/logger"
)

const providerName = "yahoo"

// chartResponse mirrors the parts of the v8 chart payload we read. Prices are
// pointers because the feed emits null for halted sessions.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
				RegularMarketVol   float64 `json:"regularMarketVolume"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Client reads quotes and daily bars from the Yahoo Finance chart API.
type Client struct {
	http       *xhttp.Client
	baseURL    string
	sem        chan struct{}
	limiter    *ratelimit.Limiter
	ratePerSec float64
	metrics    repository.Metrics
	log        *logger.Logger
	now        func() time.Time
}

type Option func(*Client)

// WithConcurrency caps in-flight requests.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sem = make(chan struct{}, n)
		}
	}
}

// WithRateLimit limits requests per second; 0 disables limiting.
func WithRateLimit(perSec float64) Option {
	return func(c *Client) { c.ratePerSec = perSec }
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a chart client on top of httpClient.
func New(baseURL string, httpClient *xhttp.Client, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		sem:     make(chan struct{}, 8),
		limiter: ratelimit.New(),
		metrics: repository.NopMetrics{},
		log:     log.With("marketdata"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote returns the latest quote. It reads the last five sessions so that
// open and previous close come from actual bars.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	now := c.now()
	res, err := c.chart(ctx, symbol, now.AddDate(0, 0, -7), now)
	if err != nil {
		return nil, err
	}
	bars := toBars(res)
	meta := res.Chart.Result[0].Meta

	q := &models.Quote{
		Symbol:    strings.ToUpper(symbol),
		Name:      meta.LongName,
		Price:     meta.RegularMarketPrice,
		PrevClose: meta.PreviousClose,
		Volume:    meta.RegularMarketVol,
	}
	if q.Name == "" {
		q.Name = meta.ShortName
	}
	if meta.RegularMarketTime > 0 {
		q.Time = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	if n := len(bars); n > 0 {
		last := bars[n-1]
		q.Open = last.Open
		if q.Price <= 0 {
			q.Price = last.Close
		}
		if q.Volume <= 0 {
			q.Volume = last.Volume
		}
		if q.PrevClose <= 0 && n > 1 {
			q.PrevClose = bars[n-2].Close
		}
	}
	if q.PrevClose <= 0 {
		q.PrevClose = meta.ChartPreviousClose
	}
	if q.Price <= 0 {
		return nil, fmt.Errorf("quote %s: %w", symbol, repository.ErrSymbolNotFound)
	}
	if q.PrevClose > 0 {
		q.Change = q.Price - q.PrevClose
		q.ChangePercent = q.Change / q.PrevClose * 100
	}
	return q, nil
}

// History returns ascending daily bars between from and to.
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	res, err := c.chart(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	return toBars(res), nil
}

func (c *Client) chart(ctx context.Context, symbol string, from, to time.Time) (*chartResponse, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { <-c.sem }()

	start := time.Now()
	var res chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(strings.ToUpper(symbol)),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(from.Unix(), 10)},
			"period2":  {strconv.FormatInt(to.Unix(), 10)},
			"interval": {"1d"},
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, &res)
	err = classify(symbol, err)
	c.metrics.RecordProviderLatency(providerName, time.Since(start).Seconds(), err)
	if err != nil {
		c.log.Debug("chart request failed", logger.String("symbol", symbol), logger.Error(err))
		return nil, err
	}

	if res.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s: %w", symbol, res.Chart.Error.Description, repository.ErrSymbolNotFound)
	}
	if len(res.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart %s: empty result: %w", symbol, repository.ErrSymbolNotFound)
	}
	return &res, nil
}

func (c *Client) acquire(ctx context.Context) error {
	if c.ratePerSec > 0 {
		burst := c.ratePerSec
		if burst < 1 {
			burst = 1
		}
		if err := c.limiter.Wait(ctx, providerName, burst, c.ratePerSec); err != nil {
			return err
		}
	}
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classify(symbol string, err error) error {
	switch {
	case err == nil:
		return nil
	case xhttp.IsStatus(err, http.StatusNotFound):
		return fmt.Errorf("chart %s: %w", symbol, repository.ErrSymbolNotFound)
	case xhttp.IsStatus(err, http.StatusTooManyRequests):
		return fmt.Errorf("chart %s: %w", symbol, repository.ErrRateLimited)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("chart %s: %w", symbol, err)
	}
}

// toBars zips the column arrays into bars, skipping sessions without a close.
func toBars(res *chartResponse) []models.Bar {
	r := res.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	out := make([]models.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		cl := at(q.Close, i)
		if cl <= 0 {
			continue
		}
		out = append(out, models.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  cl,
			Volume: at(q.Volume, i),
		})
	}
	return out
}

func at(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return 0
	}
	return *xs[i]
}
