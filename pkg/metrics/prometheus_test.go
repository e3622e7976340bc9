package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordSymbol("scored")
	r.RecordSymbol("scored")
	r.RecordProviderLatency("yahoo", 0.2, nil)
	r.RecordProviderLatency("yahoo", 0.4, errors.New("timeout"))
	r.RecordScan(12, 10, 6, 3)
	r.SetRedisAvailable(false)
	r.SetRevalidationQueue(7)

	if got := testutil.ToFloat64(r.symbols.WithLabelValues("scored")); got != 2 {
		t.Fatalf("symbols: want 2 got %v", got)
	}
	if got := testutil.ToFloat64(r.providerErrors.WithLabelValues("yahoo")); got != 1 {
		t.Fatalf("provider errors: want 1 got %v", got)
	}
	if got := testutil.ToFloat64(r.scanSymbols.WithLabelValues("dropped")); got != 1 {
		t.Fatalf("dropped: want 1 got %v", got)
	}
	if got := testutil.ToFloat64(r.redisAvailable); got != 0 {
		t.Fatalf("redis gauge: want 0 got %v", got)
	}
	if got := testutil.ToFloat64(r.revalidateQueue); got != 7 {
		t.Fatalf("queue gauge: want 7 got %v", got)
	}
}
