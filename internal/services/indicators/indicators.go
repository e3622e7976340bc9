package indicators

import talib "github.com/markcheno/go-talib"

// Windows in trading days.
const (
	Window1M  = 21
	Window3M  = 63
	Window6M  = 126
	Window1Y  = 252
	Window52W = 252
)

// EMA seeds with the simple mean of the first period values and smooths
// forward with k = 2/(period+1). Returns 0 when there are fewer than period values.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	return last(talib.Ema(values, period))
}

// SMA is the mean of the last period values, or 0 with too little data.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	if period == 1 {
		return values[len(values)-1]
	}
	return last(talib.Sma(values, period))
}

// RSI over the trailing period changes using plain averages.
// Returns 50 with fewer than period+1 closes and 100 when there were no losses.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ADRPercent is the mean of (high-low)/low*100 over the trailing period bars.
// highs and lows are aligned from the end.
func ADRPercent(highs, lows []float64, period int) float64 {
	n := len(highs)
	if len(lows) < n {
		n = len(lows)
	}
	if period <= 0 || n < period {
		return 0
	}
	h := highs[len(highs)-period:]
	l := lows[len(lows)-period:]
	var sum float64
	for i := 0; i < period; i++ {
		if l[i] <= 0 {
			continue
		}
		sum += (h[i] - l[i]) / l[i] * 100
	}
	return sum / float64(period)
}

// Momentum is the percent change from the close window bars back to price.
func Momentum(closes []float64, price float64, window int) float64 {
	if window <= 0 || len(closes) < window {
		return 0
	}
	ref := closes[len(closes)-window]
	if ref <= 0 {
		return 0
	}
	return (price/ref - 1) * 100
}

// Highest returns the max of the trailing window values, or of the whole
// series when it is shorter than window.
func Highest(values []float64, window int) float64 {
	tail := trailing(values, window)
	switch len(tail) {
	case 0:
		return 0
	case 1:
		return tail[0]
	}
	return last(talib.Max(tail, len(tail)))
}

// Lowest mirrors Highest for the minimum.
func Lowest(values []float64, window int) float64 {
	tail := trailing(values, window)
	switch len(tail) {
	case 0:
		return 0
	case 1:
		return tail[0]
	}
	return last(talib.Min(tail, len(tail)))
}

// SMATrendingUp compares SMA(period) now against SMA(period) lookback bars ago.
func SMATrendingUp(closes []float64, period, lookback int) bool {
	if len(closes) < period+lookback {
		return false
	}
	return SMA(closes, period) > SMA(closes[:len(closes)-lookback], period)
}

// PercentFrom returns (price/ref - 1)*100, or 0 when ref is not positive.
func PercentFrom(price, ref float64) float64 {
	if ref <= 0 {
		return 0
	}
	return (price/ref - 1) * 100
}

// AverageVolume is the mean of the last window volumes.
func AverageVolume(volumes []float64, window int) float64 {
	tail := trailing(volumes, window)
	if len(tail) == 0 {
		return 0
	}
	return mean(tail)
}

func trailing(values []float64, window int) []float64 {
	if window <= 0 || window >= len(values) {
		return values
	}
	return values[len(values)-window:]
}

// last is the newest point of a talib output series.
func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
