package models

// Enrichment is the optional fundamentals payload for one symbol. Nil pointer
// fields were absent at the provider.
type Enrichment struct {
	Symbol       string
	Sector       string
	Industry     string
	AnalystRecom string
	TargetPrice  *float64
	PERatio      *float64
	ForwardPE    *float64
	Country      string
	Exchange     string
	VolatilityWk *float64
	VolatilityMo *float64
	EnrichmentFields
}

// Overlay merges enrichment onto a base record and returns the result.
// The base record is not modified.
//
// Sector and industry are replaced only while the base still holds the
// "Unknown" sentinel; target price only while it is zero; analyst rating only
// while it is "N/A". Every other enrichment field is copied as-is, absent
// values included.
func Overlay(base *SymbolRecord, e *Enrichment) *SymbolRecord {
	if base == nil {
		return nil
	}
	out := *base
	if e == nil {
		return &out
	}

	if out.Sector == UnknownClassification && e.Sector != "" {
		out.Sector = e.Sector
	}
	if out.Industry == UnknownClassification && e.Industry != "" {
		out.Industry = e.Industry
	}
	if out.TargetPrice == 0 && e.TargetPrice != nil && *e.TargetPrice > 0 {
		out.TargetPrice = *e.TargetPrice
	}
	if (out.AnalystRating == NoAnalystRating || out.AnalystRating == "") && e.AnalystRecom != "" {
		out.AnalystRating = e.AnalystRecom
	}

	out.EnrichmentFields = e.EnrichmentFields
	return &out
}
