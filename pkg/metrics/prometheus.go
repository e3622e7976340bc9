package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	symbols         *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	scans           prometheus.Counter
	scanDuration    prometheus.Histogram
	scanSymbols     *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	revalidations   *prometheus.CounterVec
	revalidateQueue prometheus.Gauge
	redisAvailable  prometheus.Gauge
	errorsTotal     *prometheus.CounterVec
}

// New creates a recorder registered on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		symbols: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qullascan_symbols_total",
				Help: "Symbols evaluated by outcome",
			},
			[]string{"outcome"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qullascan_cache_lookups_total",
				Help: "Symbol cache lookups by result (hit, stale, miss)",
			},
			[]string{"result"},
		),
		scans: f.NewCounter(prometheus.CounterOpts{
			Name: "qullascan_scans_total",
			Help: "Completed scans",
		}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "qullascan_scan_duration_seconds",
			Help:    "Wall time of a full scan",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		scanSymbols: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qullascan_scan_symbols_total",
				Help: "Symbols delivered by scans, by source",
			},
			[]string{"source"},
		),
		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qullascan_provider_duration_seconds",
				Help:    "Upstream provider call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		providerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qullascan_provider_errors_total",
				Help: "Upstream provider call failures",
			},
			[]string{"provider"},
		),
		revalidations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qullascan_revalidations_total",
				Help: "Background revalidations by outcome",
			},
			[]string{"outcome"},
		),
		revalidateQueue: f.NewGauge(prometheus.GaugeOpts{
			Name: "qullascan_revalidation_queue_depth",
			Help: "Pending revalidation jobs",
		}),
		redisAvailable: f.NewGauge(prometheus.GaugeOpts{
			Name: "qullascan_redis_available",
			Help: "1 when the redis tier is reachable",
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qullascan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordSymbol(outcome string) {
	r.symbols.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordCacheLookup(result string) {
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordScan records one completed scan.
func (r *Recorder) RecordScan(seconds float64, scanned, fromCache, fetched int) {
	r.scans.Inc()
	r.scanDuration.Observe(seconds)
	r.scanSymbols.WithLabelValues("cache").Add(float64(fromCache))
	r.scanSymbols.WithLabelValues("fetched").Add(float64(fetched))
	if failed := scanned - fromCache - fetched; failed > 0 {
		r.scanSymbols.WithLabelValues("dropped").Add(float64(failed))
	}
}

// RecordProviderLatency records operation latency in seconds; a non-nil err
// also counts as a provider failure.
func (r *Recorder) RecordProviderLatency(provider string, seconds float64, err error) {
	r.providerLatency.WithLabelValues(provider).Observe(seconds)
	if err != nil {
		r.providerErrors.WithLabelValues(provider).Inc()
	}
}

func (r *Recorder) RecordRevalidation(outcome string) {
	r.revalidations.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SetRevalidationQueue(depth int) {
	r.revalidateQueue.Set(float64(depth))
}

func (r *Recorder) SetRedisAvailable(ok bool) {
	if ok {
		r.redisAvailable.Set(1)
		return
	}
	r.redisAvailable.Set(0)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
