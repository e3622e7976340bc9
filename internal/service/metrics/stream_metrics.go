package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ActiveStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "qullascan",
			Subsystem: "stream",
			Name:      "active",
			Help:      "Scan streams currently open",
		},
		[]string{"transport"},
	)

	StreamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qullascan",
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Events written to scan streams",
		},
		[]string{"transport", "event"},
	)

	StreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qullascan",
			Subsystem: "stream",
			Name:      "duration_seconds",
			Help:      "Lifetime of scan streams",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"transport", "result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ActiveStreams, StreamEvents, StreamDuration)
	})
}
