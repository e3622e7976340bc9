package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"QullaScan/internal/domain/repository"
	xhttp "QullaScan/pkg/http"
	"QullaScan/pkg/logger"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"NVDA","longName":"NVIDIA Corp","regularMarketPrice":121,"regularMarketVolume":5000,"regularMarketTime":1717000000},
"timestamp":[1716800000,1716886400,1716972800],
"indicators":{"quote":[{"open":[100,null,118],"high":[102,null,122],"low":[99,null,117],"close":[101,null,120],"volume":[1000,null,3000]}]}}],"error":null}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), logger.Nop())
}

func TestHistorySkipsNullSessions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v8/finance/chart/NVDA") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "1d" || r.URL.Query().Get("period1") == "" {
			t.Errorf("missing query params: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, chartBody)
	})

	bars, err := c.History(context.Background(), "nvda", time.Now().AddDate(-1, 0, 0), time.Now())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("want 2 bars, got %d", len(bars))
	}
	if bars[1].Close != 120 || bars[1].Open != 118 {
		t.Fatalf("last bar: %+v", bars[1])
	}
}

func TestQuoteFromMetaAndBars(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody)
	})
	q, err := c.Quote(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Price != 121 || q.Open != 118 || q.PrevClose != 101 || q.Name != "NVIDIA Corp" {
		t.Fatalf("quote: %+v", q)
	}
	if q.Change != 20 {
		t.Fatalf("change: want 20 got %v", q.Change)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, repository.ErrSymbolNotFound},
		{http.StatusTooManyRequests, repository.ErrRateLimited},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := c.History(context.Background(), "ZZZZ", time.Now().AddDate(0, -1, 0), time.Now())
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: want %v got %v", tt.status, tt.want, err)
		}
	}
}

func TestChartErrorPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	})
	if _, err := c.Quote(context.Background(), "NOPE"); !errors.Is(err, repository.ErrSymbolNotFound) {
		t.Fatalf("want ErrSymbolNotFound, got %v", err)
	}
}

func TestConcurrencyCap(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		fmt.Fprint(w, chartBody)
	}))
	defer srv.Close()

	c := New(srv.URL, xhttp.NewClient(), logger.Nop(), WithConcurrency(2))
	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_, _ = c.History(context.Background(), "NVDA", time.Now().AddDate(0, -1, 0), time.Now())
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	if atomic.LoadInt32(&peak) > 2 {
		t.Fatalf("peak concurrency %d exceeds cap", peak)
	}
}

func TestNewsMapsHeadlines(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/finance/search") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "AMD" || r.URL.Query().Get("newsCount") != "10" {
			t.Errorf("query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"news":[{"title":"AMD beats","link":"https://x/1","publisher":"Wire","providerPublishTime":1717000000,"type":"STORY"}]}`)
	})

	items, err := c.News(context.Background(), " amd ")
	if err != nil {
		t.Fatalf("news: %v", err)
	}
	if len(items) != 1 || items[0].Title != "AMD beats" || items[0].Publisher != "Wire" {
		t.Fatalf("items: %+v", items)
	}
	if !items[0].PublishedAt.Equal(time.Unix(1717000000, 0)) {
		t.Fatalf("published at: %s", items[0].PublishedAt)
	}
}

func TestNewsRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	if _, err := c.News(context.Background(), "AMD"); !errors.Is(err, repository.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}
