package marketdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	"QullaScan/internal/domain/models"
	xhttp "QullaScan/pkg/http"
	"QullaScan/pkg/logger"
)

const newsCount = 10

type searchResponse struct {
	News []struct {
		Title               string `json:"title"`
		Link                string `json:"link"`
		Publisher           string `json:"publisher"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
		Type                string `json:"type"`
	} `json:"news"`
}

// News returns up to ten recent headlines from the search endpoint.
func (c *Client) News(ctx context.Context, symbol string) ([]models.NewsItem, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { <-c.sem }()

	sym := strings.ToUpper(strings.TrimSpace(symbol))
	start := time.Now()
	var res searchResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v1/finance/search",
		QueryParams: map[string][]string{
			"q":           {sym},
			"newsCount":   {strconv.Itoa(newsCount)},
			"quotesCount": {"0"},
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, &res)
	err = classify(sym, err)
	c.metrics.RecordProviderLatency(providerName+"_news", time.Since(start).Seconds(), err)
	if err != nil {
		c.log.Debug("news request failed", logger.String("symbol", sym), logger.Error(err))
		return nil, err
	}

	items := make([]models.NewsItem, 0, len(res.News))
	for _, n := range res.News {
		if len(items) == newsCount {
			break
		}
		items = append(items, models.NewsItem{
			Title:       n.Title,
			Link:        n.Link,
			Publisher:   n.Publisher,
			PublishedAt: time.Unix(n.ProviderPublishTime, 0).UTC(),
			Type:        n.Type,
		})
	}
	return items, nil
}
