package models

import "testing"

func fp(v float64) *float64 { return &v }

func TestOverlayPrecedence(t *testing.T) {
	base := &SymbolRecord{
		Symbol:        "CRWD",
		Sector:        UnknownClassification,
		Industry:      "Software - Infrastructure",
		TargetPrice:   0,
		AnalystRating: NoAnalystRating,
	}
	e := &Enrichment{
		Sector:       "Technology",
		Industry:     "Software",
		TargetPrice:  fp(420),
		AnalystRecom: "1.6",
		EnrichmentFields: EnrichmentFields{
			ShortFloat:   fp(3.2),
			EarningsDate: "Dec 03 AMC",
		},
	}

	out := Overlay(base, e)
	if out.Sector != "Technology" {
		t.Fatalf("sector should be replaced while Unknown, got %q", out.Sector)
	}
	if out.Industry != "Software - Infrastructure" {
		t.Fatalf("industry must keep base value, got %q", out.Industry)
	}
	if out.TargetPrice != 420 {
		t.Fatalf("target price should fill zero base, got %v", out.TargetPrice)
	}
	if out.AnalystRating != "1.6" {
		t.Fatalf("analyst rating should replace N/A, got %q", out.AnalystRating)
	}
	if out.ShortFloat == nil || *out.ShortFloat != 3.2 || out.EarningsDate != "Dec 03 AMC" {
		t.Fatalf("extra fields not copied: %+v", out.EnrichmentFields)
	}
	if base.Sector != UnknownClassification || base.ShortFloat != nil {
		t.Fatalf("base record mutated")
	}
}

func TestOverlayKeepsNonSentinelBase(t *testing.T) {
	base := &SymbolRecord{Sector: "Energy", TargetPrice: 55, AnalystRating: "buy"}
	out := Overlay(base, &Enrichment{Sector: "Utilities", TargetPrice: fp(99), AnalystRecom: "3.0"})
	if out.Sector != "Energy" || out.TargetPrice != 55 || out.AnalystRating != "buy" {
		t.Fatalf("base values overridden: %+v", out)
	}
}

func TestOverlayNilEnrichment(t *testing.T) {
	base := &SymbolRecord{Symbol: "X", Sector: UnknownClassification}
	out := Overlay(base, nil)
	if out == base || out.Sector != UnknownClassification {
		t.Fatalf("nil enrichment should return an unchanged copy")
	}
}

func TestResolveScanTypeMomentumAlias(t *testing.T) {
	tests := []struct {
		typ, period string
		want        ScanType
	}{
		{"momentum", "1m", Scan1M},
		{"Momentum", "6M", Scan6M},
		{"momentum", "", ScanAll},
		{"momentum", "ep", ScanAll},
		{"rs", "3m", ScanRS},
		{"", "", ScanAll},
	}
	for _, tt := range tests {
		if got := ResolveScanType(tt.typ, tt.period); got != tt.want {
			t.Fatalf("ResolveScanType(%q, %q): want %q got %q", tt.typ, tt.period, tt.want, got)
		}
	}
}

func TestNormalizeScanType(t *testing.T) {
	cases := map[string]ScanType{
		"":            ScanAll,
		"EP":          ScanEP,
		" 3m ":        Scan3M,
		"qullamaggie": ScanQullamaggie,
		"bogus":       ScanAll,
	}
	for in, want := range cases {
		if got := NormalizeScanType(in); got != want {
			t.Fatalf("NormalizeScanType(%q): want %q got %q", in, want, got)
		}
	}
}
