package universe

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"QullaScan/internal/domain/repository"
	xhttp "QullaScan/pkg/http"
)

// ScreenerFilter holds the liquidity floor applied by the screener.
type ScreenerFilter struct {
	MinMarketCap int64
	MinVolume    int64
	MinPrice     float64
	Limit        int
}

type screenerRow struct {
	Symbol            string  `json:"symbol"`
	MarketCap         float64 `json:"marketCap"`
	IsEtf             bool    `json:"isEtf"`
	IsFund            bool    `json:"isFund"`
	IsActivelyTrading bool    `json:"isActivelyTrading"`
}

// Screener lists liquid US equities from an FMP-style company screener.
type Screener struct {
	http    *xhttp.Client
	url     string
	apiKey  string
	filter  ScreenerFilter
	metrics repository.Metrics
}

func NewScreener(url, apiKey string, filter ScreenerFilter, httpClient *xhttp.Client, m repository.Metrics) *Screener {
	if m == nil {
		m = repository.NopMetrics{}
	}
	return &Screener{http: httpClient, url: url, apiKey: apiKey, filter: filter, metrics: m}
}

var exchanges = []string{"NASDAQ", "NYSE"}

// Symbols queries each exchange for half the limit and merges the result,
// largest market cap first.
func (s *Screener) Symbols(ctx context.Context) ([]string, error) {
	limit := s.filter.Limit
	if limit <= 0 {
		limit = 2000
	}
	per := limit / len(exchanges)
	if per == 0 {
		per = 1
	}

	var rows []screenerRow
	for _, ex := range exchanges {
		var page []screenerRow
		start := time.Now()
		err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    s.url,
			QueryParams: map[string][]string{
				"exchange":          {ex},
				"country":           {"US"},
				"marketCapMoreThan": {strconv.FormatInt(s.filter.MinMarketCap, 10)},
				"volumeMoreThan":    {strconv.FormatInt(s.filter.MinVolume, 10)},
				"priceMoreThan":     {strconv.FormatFloat(s.filter.MinPrice, 'f', -1, 64)},
				"limit":             {strconv.Itoa(per)},
				"apikey":            {s.apiKey},
			},
		}, &page)
		s.metrics.RecordProviderLatency("screener", time.Since(start).Seconds(), err)
		if err != nil {
			return nil, fmt.Errorf("screener %s: %w", ex, err)
		}
		rows = append(rows, page...)
	}

	caps := make(map[string]float64, len(rows))
	for _, r := range rows {
		if !r.IsActivelyTrading || r.IsEtf || r.IsFund || r.Symbol == "" {
			continue
		}
		if c, ok := caps[r.Symbol]; !ok || r.MarketCap > c {
			caps[r.Symbol] = r.MarketCap
		}
	}
	out := make([]string, 0, len(caps))
	for sym := range caps {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool {
		if caps[out[i]] != caps[out[j]] {
			return caps[out[i]] > caps[out[j]]
		}
		return out[i] < out[j]
	})
	return out, nil
}
