package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/domain/repository"
	svccache "QullaScan/internal/service/cache"
	xhttp "QullaScan/pkg/http"
	"QullaScan/pkg/logger"
)

const providerName = "enrichment"

// Snapshot labels as published by the upstream quote page.
const (
	labelSector       = "Sector"
	labelIndustry     = "Industry"
	labelCountry      = "Country"
	labelExchange     = "Exchange"
	labelRecom        = "Recom"
	labelTargetPrice  = "Target Price"
	labelPE           = "P/E"
	labelForwardPE    = "Forward P/E"
	labelVolatility   = "Volatility"
	labelEarnings     = "Earnings"
	labelShortFloat   = "Short Float"
	labelShortRatio   = "Short Ratio"
	labelInsiderOwn   = "Insider Own"
	labelInstOwn      = "Inst Own"
	labelPEG          = "PEG"
	labelPS           = "P/S"
	labelPB           = "P/B"
	labelBeta         = "Beta"
	labelATR          = "ATR"
	labelRelVolume    = "Rel Volume"
	labelProfitMargin = "Profit Margin"
	labelOperMargin   = "Oper. Margin"
	labelGrossMargin  = "Gross Margin"
	labelROE          = "ROE"
	labelROA          = "ROA"
	labelEPSThisY     = "EPS this Y"
	labelEPSNextY     = "EPS next Y"
	labelEPSNext5Y    = "EPS next 5Y"
	labelSalesQoQ     = "Sales Q/Q"
)

// Client fetches fundamentals snapshots. A missing snapshot is not an error;
// Fetch returns nil, nil.
type Client struct {
	http    *xhttp.Client
	baseURL string
	sem     chan struct{}
	cache   *svccache.TTLCache[*models.Enrichment]
	metrics repository.Metrics
	log     *logger.Logger
}

type Option func(*Client)

func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sem = make(chan struct{}, n)
		}
	}
}

// WithCacheTTL controls how long snapshots are reused.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.cache = svccache.NewTTLCache[*models.Enrichment](d) }
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

func New(baseURL string, httpClient *xhttp.Client, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		sem:     make(chan struct{}, DefaultConcurrency),
		cache:   svccache.NewTTLCache[*models.Enrichment](15 * time.Minute),
		metrics: repository.NopMetrics{},
		log:     log.With("enrichment"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the enrichment for symbol, from cache when fresh.
func (c *Client) Fetch(ctx context.Context, symbol string) (*models.Enrichment, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if e, ok := c.cache.Get(symbol); ok {
		return e, nil
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	start := time.Now()
	var raw map[string]string
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + "/quote/" + url.PathEscape(symbol),
		Headers: map[string]string{"Accept": "application/json"},
	}, &raw)
	switch {
	case xhttp.IsStatus(err, http.StatusNotFound):
		c.metrics.RecordProviderLatency(providerName, time.Since(start).Seconds(), nil)
		c.cache.Set(symbol, nil)
		return nil, nil
	case xhttp.IsStatus(err, http.StatusTooManyRequests):
		err = fmt.Errorf("enrichment %s: %w", symbol, repository.ErrRateLimited)
	case err != nil && !errors.Is(err, context.Canceled):
		err = fmt.Errorf("enrichment %s: %w", symbol, err)
	}
	c.metrics.RecordProviderLatency(providerName, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}

	e := fromSnapshot(symbol, raw)
	c.cache.Set(symbol, e)
	return e, nil
}

// Prune drops expired cache entries.
func (c *Client) Prune() int { return c.cache.Prune() }

func fromSnapshot(symbol string, raw map[string]string) *models.Enrichment {
	if len(raw) == 0 {
		return nil
	}
	e := &models.Enrichment{
		Symbol:       symbol,
		Sector:       text(raw[labelSector]),
		Industry:     text(raw[labelIndustry]),
		Country:      text(raw[labelCountry]),
		Exchange:     text(raw[labelExchange]),
		AnalystRecom: text(raw[labelRecom]),
		TargetPrice:  parseNumber(raw[labelTargetPrice]),
		PERatio:      parseNumber(raw[labelPE]),
		ForwardPE:    parseNumber(raw[labelForwardPE]),
	}
	e.VolatilityWk, e.VolatilityMo = parseVolatility(raw[labelVolatility])

	e.EnrichmentFields = models.EnrichmentFields{
		ShortFloat:        parsePercent(raw[labelShortFloat]),
		InsiderOwn:        parsePercent(raw[labelInsiderOwn]),
		InstOwn:           parsePercent(raw[labelInstOwn]),
		ShortRatio:        parseNumber(raw[labelShortRatio]),
		PEG:               parseNumber(raw[labelPEG]),
		PriceToSales:      parseNumber(raw[labelPS]),
		PriceToBook:       parseNumber(raw[labelPB]),
		Beta:              parseNumber(raw[labelBeta]),
		ATR:               parseNumber(raw[labelATR]),
		RelativeVolume:    parseNumber(raw[labelRelVolume]),
		ProfitMargin:      parsePercent(raw[labelProfitMargin]),
		OperMargin:        parsePercent(raw[labelOperMargin]),
		GrossMargin:       parsePercent(raw[labelGrossMargin]),
		ReturnOnEquity:    parsePercent(raw[labelROE]),
		ReturnOnAssets:    parsePercent(raw[labelROA]),
		EPSGrowthThisYear: parsePercent(raw[labelEPSThisY]),
		EPSGrowthNextYear: parsePercent(raw[labelEPSNextY]),
		EPSGrowthNext5Y:   parsePercent(raw[labelEPSNext5Y]),
		SalesGrowthQoQ:    parsePercent(raw[labelSalesQoQ]),
		EarningsDate:      text(raw[labelEarnings]),
	}
	return e
}
