package scoring

import (
	"QullaScan/internal/domain/models"
	"QullaScan/internal/services/indicators"
)

// Setup thresholds.
const (
	MinDollarVolume = 5_000_000
	MinPrice        = 10
	MinADR          = 5
	MinADRSupport   = 4

	StrongMomentum1M = 20
	StrongMomentum3M = 40
	StrongMomentum6M = 60

	MaxBelowHigh = -25
	MinAboveLow  = 30

	MinSupport    = 2
	coreCriteria  = 6
	totalCriteria = 11

	EPMinGap         = 5
	EPMinVolumeRatio = 1.5
)

// Setup is the outcome of scoring one snapshot.
type Setup struct {
	Details      models.SetupDetails
	Score        float64
	IsQullaSetup bool
	IsEP         bool
	ScanTypes    []string
}

// Evaluate applies the setup heuristic: all six core criteria plus at least
// two of the five support criteria.
func Evaluate(s *indicators.Snapshot) Setup {
	d := models.SetupDetails{
		DollarVolume: s.DollarVolume,

		HasMinLiquidity:  s.DollarVolume >= MinDollarVolume,
		HasMinPrice:      s.Price >= MinPrice,
		EMA50AboveEMA200: s.EMA50 > s.EMA200,
		PriceAboveEMA200: s.Price > s.EMA200,
		PriceAboveEMA50:  s.Price > s.EMA50,
		GoodADR:          s.ADRPercent >= MinADR,

		HasStrongMomentum: s.Momentum1M >= StrongMomentum1M ||
			s.Momentum3M >= StrongMomentum3M ||
			s.Momentum6M >= StrongMomentum6M,
		SMA200TrendingUp: s.SMA200TrendingUp,
		IsNear52WkHigh:   s.DistanceFromHigh >= MaxBelowHigh,
		IsAbove52WkLow:   s.DistanceFromLow >= MinAboveLow,
		VolatilityMonth:  s.ADRPercent >= MinADRSupport,
	}
	d.CoreScore = count(d.HasMinLiquidity, d.HasMinPrice, d.EMA50AboveEMA200,
		d.PriceAboveEMA200, d.PriceAboveEMA50, d.GoodADR)
	d.SupportScore = count(d.HasStrongMomentum, d.SMA200TrendingUp, d.IsNear52WkHigh,
		d.IsAbove52WkLow, d.VolatilityMonth)

	st := Setup{
		Details:      d,
		Score:        float64(d.CoreScore+d.SupportScore) / totalCriteria * 100,
		IsQullaSetup: d.CoreScore == coreCriteria && d.SupportScore >= MinSupport,
		IsEP:         s.GapPercent >= EPMinGap && s.VolumeRatio >= EPMinVolumeRatio,
	}
	st.ScanTypes = ScanTypes(st.IsEP, st.IsQullaSetup, s.Momentum1M, s.Momentum3M, s.Momentum6M)
	return st
}

// ScanTypes returns the tag set in display order. Never nil.
func ScanTypes(isEP, isQulla bool, m1, m3, m6 float64) []string {
	tags := make([]string, 0, 5)
	if isEP {
		tags = append(tags, models.TagEP)
	}
	if m1 >= 10 {
		tags = append(tags, models.Tag1M)
	}
	if m3 >= 20 {
		tags = append(tags, models.Tag3M)
	}
	if m6 >= 30 {
		tags = append(tags, models.Tag6M)
	}
	if isQulla {
		tags = append(tags, models.TagQullamaggie)
	}
	return tags
}

func count(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
