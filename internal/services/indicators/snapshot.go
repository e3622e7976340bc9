package indicators

import (
	"errors"

	"QullaScan/internal/domain/models"
)

// MinBars is the shortest history a symbol can be scored with.
const MinBars = 50

var ErrInsufficientHistory = errors.New("insufficient price history")

// Snapshot is every indicator the scorer needs for one symbol.
type Snapshot struct {
	Price        float64
	PrevClose    float64
	Open         float64
	Volume       float64
	AvgVolume    float64
	VolumeRatio  float64
	GapPercent   float64
	DollarVolume float64

	EMA10, EMA20, EMA50, EMA200          float64
	SMA20, SMA50, SMA150, SMA200         float64
	RSI, ADRPercent                      float64
	Momentum1M, Momentum3M, Momentum6M   float64
	Momentum1Y                           float64
	High52W, Low52W                      float64
	DistanceFromHigh, DistanceFromLow    float64
	DistanceFrom20SMA, DistanceFrom50SMA float64
	DistanceFrom200SMA                   float64
	SMA200TrendingUp                     bool

	Closes   []float64
	Sessions int // bars received, priced or not
}

// Compute derives a Snapshot from ascending daily bars and the latest quote.
// Bars with non-positive prices are left out of the price series. quote may
// be nil, in which case the last bar stands in for it.
func Compute(bars []models.Bar, quote *models.Quote, minBars int) (*Snapshot, error) {
	if minBars <= 0 {
		minBars = MinBars
	}
	if len(bars) < minBars {
		return nil, ErrInsufficientHistory
	}

	closes := make([]float64, 0, len(bars))
	highs := make([]float64, 0, len(bars))
	lows := make([]float64, 0, len(bars))
	volumes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			closes = append(closes, b.Close)
		}
		if b.High > 0 {
			highs = append(highs, b.High)
		}
		if b.Low > 0 {
			lows = append(lows, b.Low)
		}
		volumes = append(volumes, b.Volume)
	}
	if len(closes) < 2 || len(highs) == 0 || len(lows) == 0 {
		return nil, ErrInsufficientHistory
	}

	s := &Snapshot{Closes: closes, Sessions: len(bars)}

	s.Price = closes[len(closes)-1]
	s.PrevClose = closes[len(closes)-2]
	s.Volume = volumes[len(volumes)-1]
	if quote != nil {
		if quote.Price > 0 {
			s.Price = quote.Price
		}
		if quote.PrevClose > 0 {
			s.PrevClose = quote.PrevClose
		}
		if quote.Volume > 0 {
			s.Volume = quote.Volume
		}
		s.Open = quote.Open
	}
	if s.Open <= 0 {
		s.Open = s.Price
	}

	s.EMA10 = EMA(closes, 10)
	s.EMA20 = EMA(closes, 20)
	s.EMA50 = EMA(closes, 50)
	s.EMA200 = EMA(closes, 200)
	s.SMA20 = SMA(closes, 20)
	s.SMA50 = SMA(closes, 50)
	s.SMA150 = SMA(closes, 150)
	s.SMA200 = SMA(closes, 200)
	s.RSI = RSI(closes, 14)
	s.ADRPercent = ADRPercent(highs, lows, 20)

	s.Momentum1M = Momentum(closes, s.Price, Window1M)
	s.Momentum3M = Momentum(closes, s.Price, Window3M)
	s.Momentum6M = Momentum(closes, s.Price, Window6M)
	s.Momentum1Y = Momentum(closes, s.Price, Window1Y)

	s.High52W = Highest(highs, Window52W)
	s.Low52W = Lowest(lows, Window52W)
	s.DistanceFromHigh = PercentFrom(s.Price, s.High52W)
	s.DistanceFromLow = PercentFrom(s.Price, s.Low52W)
	s.DistanceFrom20SMA = PercentFrom(s.Price, s.SMA20)
	s.DistanceFrom50SMA = PercentFrom(s.Price, s.SMA50)
	s.DistanceFrom200SMA = PercentFrom(s.Price, s.SMA200)
	s.SMA200TrendingUp = SMATrendingUp(closes, 200, 30)

	s.AvgVolume = AverageVolume(volumes, 20)
	s.VolumeRatio = 1
	if s.AvgVolume > 0 {
		s.VolumeRatio = s.Volume / s.AvgVolume
	}
	s.GapPercent = PercentFrom(s.Open, s.PrevClose)
	s.DollarVolume = s.Price * s.AvgVolume

	return s, nil
}

// ChartData converts the last n bars to chart candles.
func ChartData(bars []models.Bar, n int) []models.Candle {
	if n <= 0 {
		return nil
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]models.Candle, len(bars))
	for i, b := range bars {
		out[i] = models.Candle{
			Time:   b.Time.UTC().Format("2006-01-02"),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return out
}
