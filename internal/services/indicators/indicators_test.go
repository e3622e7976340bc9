package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"QullaScan/internal/domain/models"
)

func seq(from, to float64) []float64 {
	var out []float64
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEMASeededWithSMA(t *testing.T) {
	// seed mean(1,2,3)=2, k=0.5, each step lands on previous value
	if got := EMA(seq(1, 10), 3); !almost(got, 9) {
		t.Fatalf("EMA: want 9 got %v", got)
	}
	if got := EMA(seq(1, 2), 3); got != 0 {
		t.Fatalf("EMA short series: want 0 got %v", got)
	}
	if got := EMA(seq(1, 3), 3); !almost(got, 2) {
		t.Fatalf("EMA exact period: want seed 2 got %v", got)
	}
}

func TestEMAAndSMADeterministic(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7)
	}
	for i := 0; i < 5; i++ {
		if EMA(closes, 50) != EMA(closes, 50) || SMA(closes, 200) != SMA(closes, 200) {
			t.Fatalf("non-deterministic result")
		}
	}
}

func TestEMAMatchesRecurrence(t *testing.T) {
	closes := make([]float64, 260)
	for i := range closes {
		closes[i] = 60 + 0.1*float64(i) + 5*math.Sin(float64(i)/9)
	}
	for _, p := range []int{10, 20, 50, 200} {
		k := 2.0 / float64(p+1)
		var want float64
		for _, v := range closes[:p] {
			want += v
		}
		want /= float64(p)
		for _, v := range closes[p:] {
			want = v*k + want*(1-k)
		}
		if got := EMA(closes, p); math.Abs(got-want) > 1e-8 {
			t.Fatalf("EMA(%d): want %v got %v", p, want, got)
		}
	}
}

func TestHighestLowest(t *testing.T) {
	vals := []float64{5, 9, 1, 7, 3}
	tests := []struct {
		window int
		hi, lo float64
	}{
		{window: 3, hi: 7, lo: 1},
		{window: 2, hi: 7, lo: 3},
		{window: 252, hi: 9, lo: 1},
	}
	for _, tt := range tests {
		if got := Highest(vals, tt.window); got != tt.hi {
			t.Fatalf("Highest(%d): want %v got %v", tt.window, tt.hi, got)
		}
		if got := Lowest(vals, tt.window); got != tt.lo {
			t.Fatalf("Lowest(%d): want %v got %v", tt.window, tt.lo, got)
		}
	}
	if Highest([]float64{4}, 252) != 4 || Lowest(nil, 252) != 0 {
		t.Fatalf("single value or empty series")
	}
}

func TestSMA(t *testing.T) {
	if got := SMA(seq(1, 10), 3); !almost(got, 9) {
		t.Fatalf("SMA: want 9 got %v", got)
	}
	if got := SMA(seq(1, 2), 3); got != 0 {
		t.Fatalf("SMA short: want 0 got %v", got)
	}
}

func TestRSI(t *testing.T) {
	if got := RSI(seq(1, 14), 14); got != 50 {
		t.Fatalf("RSI with 14 closes: want neutral 50 got %v", got)
	}
	if got := RSI(seq(1, 20), 14); got != 100 {
		t.Fatalf("RSI without losses: want 100 got %v", got)
	}
	alt := []float64{10}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			alt = append(alt, alt[len(alt)-1]+1)
		} else {
			alt = append(alt, alt[len(alt)-1]-1)
		}
	}
	if got := RSI(alt, 14); !almost(got, 50) {
		t.Fatalf("RSI balanced: want 50 got %v", got)
	}
}

func TestADRPercent(t *testing.T) {
	highs := make([]float64, 25)
	lows := make([]float64, 25)
	for i := range highs {
		highs[i], lows[i] = 11, 10
	}
	if got := ADRPercent(highs, lows, 20); !almost(got, 10) {
		t.Fatalf("ADR: want 10 got %v", got)
	}
	if got := ADRPercent(highs[:5], lows[:5], 20); got != 0 {
		t.Fatalf("ADR short: want 0 got %v", got)
	}
}

func TestMomentum(t *testing.T) {
	closes := seq(1, 30)
	if got := Momentum(closes, 30, Window1M); !almost(got, 200) {
		t.Fatalf("1M momentum: want 200 got %v", got)
	}
	if got := Momentum(closes, 30, Window3M); got != 0 {
		t.Fatalf("3M momentum unavailable: want 0 got %v", got)
	}
}

func TestSMATrendingUp(t *testing.T) {
	up := seq(1, 230)
	if !SMATrendingUp(up, 200, 30) {
		t.Fatalf("rising series should trend up")
	}
	if SMATrendingUp(up[:229], 200, 30) {
		t.Fatalf("series shorter than period+lookback must be false")
	}
	down := make([]float64, 230)
	for i := range down {
		down[i] = float64(500 - i)
	}
	if SMATrendingUp(down, 200, 30) {
		t.Fatalf("falling series should not trend up")
	}
}

func bars(n int, f func(i int) models.Bar) []models.Bar {
	out := make([]models.Bar, n)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = f(i)
		out[i].Time = start.AddDate(0, 0, i)
	}
	return out
}

func TestComputeInsufficientHistory(t *testing.T) {
	b := bars(49, func(i int) models.Bar { return models.Bar{Open: 1, High: 1, Low: 1, Close: 1, Volume: 1} })
	if _, err := Compute(b, nil, MinBars); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("want ErrInsufficientHistory, got %v", err)
	}
}

func TestComputeUsesQuote(t *testing.T) {
	b := bars(260, func(i int) models.Bar {
		c := 20 + float64(i)*0.1
		return models.Bar{Open: c, High: c * 1.06, Low: c, Close: c, Volume: 1_000_000}
	})
	q := &models.Quote{Price: 50, PrevClose: 45, Open: 48, Volume: 3_000_000}

	s, err := Compute(b, q, MinBars)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if s.Price != 50 {
		t.Fatalf("price from quote: got %v", s.Price)
	}
	if !almost(s.VolumeRatio, 3) {
		t.Fatalf("volume ratio: want 3 got %v", s.VolumeRatio)
	}
	if !almost(s.GapPercent, (48.0/45.0-1)*100) {
		t.Fatalf("gap: got %v", s.GapPercent)
	}
	if !almost(s.ADRPercent, 6) {
		t.Fatalf("adr: want 6 got %v", s.ADRPercent)
	}
	if !almost(s.DollarVolume, 50_000_000) {
		t.Fatalf("dollar volume: got %v", s.DollarVolume)
	}
	if !s.SMA200TrendingUp {
		t.Fatalf("rising closes should trend up")
	}
	if len(ChartData(b, 100)) != 100 {
		t.Fatalf("chart data should keep last 100 bars")
	}
}

func TestComputeCountsUnpricedSessions(t *testing.T) {
	b := bars(130, func(i int) models.Bar {
		if i%13 == 0 {
			return models.Bar{}
		}
		return models.Bar{Open: 10, High: 11, Low: 9, Close: 10, Volume: 1000}
	})
	s, err := Compute(b, nil, MinBars)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if s.Sessions != 130 || len(s.Closes) != 120 {
		t.Fatalf("sessions %d closes %d", s.Sessions, len(s.Closes))
	}
}
