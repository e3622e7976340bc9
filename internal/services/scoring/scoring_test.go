package scoring

import (
	"testing"

	"QullaScan/internal/domain/models"
	"QullaScan/internal/services/indicators"
)

func passingSnapshot() *indicators.Snapshot {
	return &indicators.Snapshot{
		Price:            50,
		EMA50:            45,
		EMA200:           40,
		ADRPercent:       6,
		AvgVolume:        200_000,
		DollarVolume:     50 * 200_000,
		Momentum1M:       25,
		DistanceFromHigh: -10,
		DistanceFromLow:  60,
		SMA200TrendingUp: true,
		VolumeRatio:      1,
	}
}

func TestEvaluateQullaScenario(t *testing.T) {
	st := Evaluate(passingSnapshot())
	if !st.IsQullaSetup {
		t.Fatalf("expected qulla setup, details %+v", st.Details)
	}
	if st.Score < 70 {
		t.Fatalf("score: want >= 70 got %v", st.Score)
	}
	if st.Details.CoreScore != 6 || st.Details.SupportScore != 5 {
		t.Fatalf("scores: core %d support %d", st.Details.CoreScore, st.Details.SupportScore)
	}
	if !st.Details.HasMinLiquidity || st.Details.DollarVolume != 10_000_000 {
		t.Fatalf("liquidity: %+v", st.Details)
	}
}

func TestEvaluateQullaTruthTable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *indicators.Snapshot)
		core   int
		supp   int
		qulla  bool
	}{
		{"all pass", func(*indicators.Snapshot) {}, 6, 5, true},
		{"core 6 support 2", func(s *indicators.Snapshot) {
			s.Momentum1M = 0
			s.SMA200TrendingUp = false
			s.DistanceFromHigh = -40
		}, 6, 2, true},
		{"core 6 support 1", func(s *indicators.Snapshot) {
			s.Momentum1M = 0
			s.SMA200TrendingUp = false
			s.DistanceFromHigh = -40
			s.DistanceFromLow = 10
		}, 6, 1, false},
		{"core 5 support 5", func(s *indicators.Snapshot) {
			s.EMA50 = 39 // below ema200
		}, 5, 5, false},
		{"price below 10", func(s *indicators.Snapshot) {
			s.Price, s.EMA50, s.EMA200 = 9, 8, 7
			s.DollarVolume = 9 * 1_000_000
		}, 5, 5, false},
		{"adr 4.5 fails core keeps support", func(s *indicators.Snapshot) {
			s.ADRPercent = 4.5
		}, 5, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := passingSnapshot()
			tt.mutate(s)
			st := Evaluate(s)
			if st.Details.CoreScore != tt.core || st.Details.SupportScore != tt.supp {
				t.Fatalf("core/support: want %d/%d got %d/%d", tt.core, tt.supp, st.Details.CoreScore, st.Details.SupportScore)
			}
			if st.IsQullaSetup != tt.qulla {
				t.Fatalf("isQulla: want %v got %v", tt.qulla, st.IsQullaSetup)
			}
			want := float64(tt.core+tt.supp) / 11 * 100
			if st.Score != want {
				t.Fatalf("score: want %v got %v", want, st.Score)
			}
		})
	}
}

func TestEvaluateEP(t *testing.T) {
	s := passingSnapshot()
	s.GapPercent, s.VolumeRatio = 5, 1.5
	if !Evaluate(s).IsEP {
		t.Fatalf("gap 5 / vol 1.5 should be EP")
	}
	s.VolumeRatio = 1.49
	if Evaluate(s).IsEP {
		t.Fatalf("vol ratio below 1.5 should not be EP")
	}
}

func TestScanTypes(t *testing.T) {
	got := ScanTypes(true, true, 10, 19.9, 30)
	want := []string{models.TagEP, models.Tag1M, models.Tag6M, models.TagQullamaggie}
	if len(got) != len(want) {
		t.Fatalf("tags: want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags: want %v got %v", want, got)
		}
	}
	if tags := ScanTypes(false, false, 0, 0, 0); tags == nil || len(tags) != 0 {
		t.Fatalf("empty tag set should be non-nil and empty")
	}
}

func flatCloses(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRSRating(t *testing.T) {
	if got := RSRating(flatCloses(125, 10), 125, models.Performance{}); got != NeutralRS {
		t.Fatalf("short history: want 50 got %d", got)
	}
	if got := RSRating(flatCloses(200, 10), 200, models.Performance{}); got != 50 {
		t.Fatalf("flat vs flat: want 50 got %d", got)
	}
	if got := RSRating(flatCloses(200, 10), 200, models.Performance{M1: 200, M3: 200, M6: 200}); got != 1 {
		t.Fatalf("clamped low: want 1 got %d", got)
	}

	closes := flatCloses(200, 10)
	closes[len(closes)-1] = 20 // +100% on every window
	if got := RSRating(closes, 200, models.Performance{}); got != 99 {
		t.Fatalf("clamped high: want 99 got %d", got)
	}

	closes = flatCloses(200, 100)
	closes[len(closes)-1] = 110 // +10% on every window
	// 50 + 10*0.4 + 10*0.3 + 10*0.3 = 60
	if got := RSRating(closes, 200, models.Performance{}); got != 60 {
		t.Fatalf("weighted: want 60 got %d", got)
	}
}

func TestRSRatingSixMonthFallsBackToThreeMonth(t *testing.T) {
	// 130 sessions, 10 of them unpriced: 120 closes remain.
	closes := flatCloses(120, 100)
	for i := len(closes) - 63; i < len(closes)-21; i++ {
		closes[i] = 80
	}
	closes[len(closes)-1] = 120
	// 1M: 120/100 = +20, 3M: 120/80 = +50, 6M reuses 3M.
	// 50 + 20*0.4 + 50*0.3 + 50*0.3 = 88
	tests := []struct {
		name     string
		sessions int
		bench    models.Performance
		want     int
	}{
		{"fallback", 130, models.Performance{}, 88},
		{"benchmark six month still subtracted", 130, models.Performance{M6: 10}, 85},
		{"too few sessions", 125, models.Performance{}, NeutralRS},
	}
	for _, tt := range tests {
		if got := RSRating(closes, tt.sessions, tt.bench); got != tt.want {
			t.Fatalf("%s: want %d got %d", tt.name, tt.want, got)
		}
	}
}

func TestBenchmarkPerformanceShortSixMonth(t *testing.T) {
	closes := flatCloses(100, 100)
	closes[len(closes)-1] = 105
	p := BenchmarkPerformance(closes)
	if p.M6 != 0 {
		t.Fatalf("6M leg with 100 closes: want 0 got %v", p.M6)
	}
	if p.M1 == 0 || p.M3 == 0 {
		t.Fatalf("1M/3M legs should be set: %+v", p)
	}
}

func TestFilterSortsByMetric(t *testing.T) {
	recs := []*models.SymbolRecord{
		{Symbol: "A", Momentum1M: 12, RSRating: 85},
		{Symbol: "B", Momentum1M: 40, RSRating: 70},
		{Symbol: "C", Momentum1M: 5, RSRating: 95, IsEP: true},
	}
	got := Filter(recs, models.Scan1M)
	if len(got) != 2 || got[0].Symbol != "B" || got[1].Symbol != "A" {
		t.Fatalf("1m filter: %v", symbols(got))
	}
	got = Filter(recs, models.ScanRS)
	if len(got) != 2 || got[0].Symbol != "C" {
		t.Fatalf("rs filter: %v", symbols(got))
	}
	if got = Filter(recs, models.ScanEP); len(got) != 1 || got[0].Symbol != "C" {
		t.Fatalf("ep filter: %v", symbols(got))
	}
	if got = Filter(recs, models.ScanAll); len(got) != 3 || got[0].Symbol != "A" {
		t.Fatalf("all: %v", symbols(got))
	}
	if recs[0].Symbol != "A" {
		t.Fatalf("input reordered")
	}
}

func symbols(rs []*models.SymbolRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Symbol
	}
	return out
}
