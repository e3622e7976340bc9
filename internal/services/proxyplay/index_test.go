package proxyplay

import (
	"testing"

	"QullaScan/internal/domain/models"
)

func rec(sym, ind, sec string, rs int) *models.SymbolRecord {
	return &models.SymbolRecord{Symbol: sym, Industry: ind, Sector: sec, RSRating: rs}
}

func TestLookupLimitsAndExclusions(t *testing.T) {
	recs := []*models.SymbolRecord{
		rec("NVDA", "Semis", "Tech", 95),
		rec("AMD", "Semis", "Tech", 90),
		rec("AVGO", "Semis", "Tech", 88),
		rec("MU", "Semis", "Tech", 85),
		rec("INTC", "Semis", "Tech", 40), // below threshold
		rec("MSFT", "Software", "Tech", 80),
		rec("CRWD", "Software", "Tech", 92),
		rec("ORCL", "Software", "Tech", 75),
	}
	idx := Build(recs, DefaultMinRS)

	got := idx.Lookup("NVDA", "Semis", "Tech")
	want := []string{"AMD", "AVGO", "MU", "CRWD", "MSFT"}
	if len(got) != len(want) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}

	for _, r := range recs {
		peers := idx.Lookup(r.Symbol, r.Industry, r.Sector)
		if len(peers) > IndustryPeers+SectorPeers {
			t.Fatalf("%s: too many peers %v", r.Symbol, peers)
		}
		seen := map[string]bool{}
		for _, p := range peers {
			if p == r.Symbol {
				t.Fatalf("%s listed as its own proxy", r.Symbol)
			}
			if p == "INTC" {
				t.Fatalf("low RS symbol leaked into peers")
			}
			if seen[p] {
				t.Fatalf("%s: duplicate peer %s", r.Symbol, p)
			}
			seen[p] = true
		}
	}
}

func TestLookupLowRSSymbolStillGetsPeers(t *testing.T) {
	idx := Build([]*models.SymbolRecord{
		rec("AMD", "Semis", "Tech", 90),
		rec("INTC", "Semis", "Tech", 40),
	}, DefaultMinRS)
	got := idx.Lookup("INTC", "Semis", "Tech")
	if len(got) != 1 || got[0] != "AMD" {
		t.Fatalf("got %v", got)
	}
}

func TestUnknownClassificationNotGrouped(t *testing.T) {
	recs := []*models.SymbolRecord{
		rec("A", models.UnknownClassification, models.UnknownClassification, 90),
		rec("B", models.UnknownClassification, models.UnknownClassification, 90),
	}
	idx := Build(recs, DefaultMinRS)
	idx.Apply(recs)
	if len(recs[0].ProxyPlays) != 0 {
		t.Fatalf("unknown groups should be empty, got %v", recs[0].ProxyPlays)
	}
	if ind, sec := idx.Size(); ind != 0 || sec != 0 {
		t.Fatalf("size: %d/%d", ind, sec)
	}
}
