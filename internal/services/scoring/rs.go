package scoring

import (
	"math"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/services/indicators"
)

const NeutralRS = 50

// BenchmarkPerformance computes the 1M/3M/6M benchmark returns from its
// closes. The 6M leg is 0 when fewer than 126 closes exist.
func BenchmarkPerformance(closes []float64) models.Performance {
	if len(closes) == 0 {
		return models.Performance{}
	}
	price := closes[len(closes)-1]
	return models.Performance{
		M1: indicators.Momentum(closes, price, indicators.Window1M),
		M3: indicators.Momentum(closes, price, indicators.Window3M),
		M6: indicators.Momentum(closes, price, indicators.Window6M),
	}
}

// RSRating compares a symbol's weighted returns against the benchmark and
// maps the spread onto 1..99. sessions is the number of bars the provider
// returned before unpriced sessions were dropped; fewer than 126 yields the
// neutral 50. When fewer than 126 priced closes remain the 6M leg reuses 3M.
func RSRating(closes []float64, sessions int, bench models.Performance) int {
	if sessions < indicators.Window6M || len(closes) == 0 {
		return NeutralRS
	}
	price := closes[len(closes)-1]
	m1 := indicators.Momentum(closes, price, indicators.Window1M)
	m3 := indicators.Momentum(closes, price, indicators.Window3M)
	m6 := m3
	if len(closes) >= indicators.Window6M {
		m6 = indicators.Momentum(closes, price, indicators.Window6M)
	}

	raw := (m1-bench.M1)*0.4 + (m3-bench.M3)*0.3 + (m6-bench.M6)*0.3
	score := math.Min(99, math.Max(1, NeutralRS+raw))
	return int(math.Round(score))
}
