package scoring

import (
	"sort"

	"QullaScan/internal/domain/models"
)

// Minimum values for the momentum and RS views.
const (
	FilterMin1M = 10
	FilterMin3M = 20
	FilterMin6M = 30
	FilterMinRS = 80
)

// Filter keeps the records that belong to a scan type, sorted by the metric
// that defines it. The input slice is not reordered. ScanAll and EP keep input order.
func Filter(records []*models.SymbolRecord, st models.ScanType) []*models.SymbolRecord {
	var (
		keep func(*models.SymbolRecord) bool
		key  func(*models.SymbolRecord) float64
	)
	switch st {
	case models.ScanEP:
		keep = func(r *models.SymbolRecord) bool { return r.IsEP }
	case models.Scan1M:
		keep = func(r *models.SymbolRecord) bool { return r.Momentum1M >= FilterMin1M }
		key = func(r *models.SymbolRecord) float64 { return r.Momentum1M }
	case models.Scan3M:
		keep = func(r *models.SymbolRecord) bool { return r.Momentum3M >= FilterMin3M }
		key = func(r *models.SymbolRecord) float64 { return r.Momentum3M }
	case models.Scan6M:
		keep = func(r *models.SymbolRecord) bool { return r.Momentum6M >= FilterMin6M }
		key = func(r *models.SymbolRecord) float64 { return r.Momentum6M }
	case models.ScanQullamaggie:
		keep = func(r *models.SymbolRecord) bool { return r.IsQullaSetup }
		key = func(r *models.SymbolRecord) float64 { return r.SetupScore }
	case models.ScanRS:
		keep = func(r *models.SymbolRecord) bool { return r.RSRating >= FilterMinRS }
		key = func(r *models.SymbolRecord) float64 { return float64(r.RSRating) }
	default:
		out := make([]*models.SymbolRecord, len(records))
		copy(out, records)
		return out
	}

	out := make([]*models.SymbolRecord, 0, len(records))
	for _, r := range records {
		if r != nil && keep(r) {
			out = append(out, r)
		}
	}
	if key != nil {
		sort.SliceStable(out, func(i, j int) bool { return key(out[i]) > key(out[j]) })
	}
	return out
}
