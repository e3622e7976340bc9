package scoring

import (
	"strings"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/services/indicators"
)

// BuildRecord assembles the scored record for one symbol.
func BuildRecord(symbol string, q *models.Quote, s *indicators.Snapshot, rsRating int) *models.SymbolRecord {
	setup := Evaluate(s)
	details := setup.Details

	r := &models.SymbolRecord{
		Symbol:      strings.ToUpper(symbol),
		Name:        symbol,
		Price:       s.Price,
		Volume:      s.Volume,
		AvgVolume:   s.AvgVolume,
		VolumeRatio: s.VolumeRatio,

		Momentum1M: s.Momentum1M,
		Momentum3M: s.Momentum3M,
		Momentum6M: s.Momentum6M,
		Momentum1Y: s.Momentum1Y,

		RSI:                  s.RSI,
		ADRPercent:           s.ADRPercent,
		DistanceFrom20SMA:    s.DistanceFrom20SMA,
		DistanceFrom50SMA:    s.DistanceFrom50SMA,
		DistanceFrom200SMA:   s.DistanceFrom200SMA,
		DistanceFrom52WkHigh: s.DistanceFromHigh,
		DistanceFrom52WkLow:  s.DistanceFromLow,

		EMA10: s.EMA10, EMA20: s.EMA20, EMA50: s.EMA50, EMA200: s.EMA200,
		SMA20: s.SMA20, SMA50: s.SMA50, SMA150: s.SMA150, SMA200: s.SMA200,

		RSRating:      rsRating,
		AnalystRating: models.NoAnalystRating,
		Sector:        models.UnknownClassification,
		Industry:      models.UnknownClassification,

		GapPercent:   s.GapPercent,
		IsEP:         setup.IsEP,
		IsQullaSetup: setup.IsQullaSetup,
		SetupScore:   setup.Score,
		SetupDetails: &details,
		ScanTypes:    setup.ScanTypes,
	}

	if q != nil {
		if q.Name != "" {
			r.Name = q.Name
		}
		r.Change = q.Change
		r.ChangePercent = q.ChangePercent
		r.MarketCap = q.MarketCap
		r.EPS = q.EPS
		r.EPSGrowth = q.EPSGrowth
		r.RevenueGrowth = q.RevenueGrowth
		r.PERatio = q.PERatio
		r.ForwardPE = q.ForwardPE
		r.TargetPrice = q.TargetPrice
		r.NumAnalysts = q.NumAnalysts
		if q.AnalystRating != "" {
			r.AnalystRating = q.AnalystRating
		}
		if q.Sector != "" {
			r.Sector = q.Sector
		}
		if q.Industry != "" {
			r.Industry = q.Industry
		}
	}
	return r
}
