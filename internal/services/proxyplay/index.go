package proxyplay

import (
	"sort"

	"QullaScan/internal/domain/models"
)

const (
	DefaultMinRS  = 70
	IndustryPeers = 3
	SectorPeers   = 2
)

type entry struct {
	symbol string
	rs     int
}

// Index groups strong symbols by industry and sector so peer lookups do not
// rescan the whole result set. It is immutable after Build.
type Index struct {
	byIndustry map[string][]entry
	bySector   map[string][]entry
}

// Build indexes every record with rsRating >= minRS. Groups are ordered by
// rsRating descending, ties by symbol. Empty and "Unknown" classifications
// are not grouped.
func Build(records []*models.SymbolRecord, minRS int) *Index {
	idx := &Index{
		byIndustry: make(map[string][]entry),
		bySector:   make(map[string][]entry),
	}
	for _, r := range records {
		if r == nil || r.RSRating < minRS {
			continue
		}
		e := entry{symbol: r.Symbol, rs: r.RSRating}
		if groupable(r.Industry) {
			idx.byIndustry[r.Industry] = append(idx.byIndustry[r.Industry], e)
		}
		if groupable(r.Sector) {
			idx.bySector[r.Sector] = append(idx.bySector[r.Sector], e)
		}
	}
	for _, g := range idx.byIndustry {
		sortGroup(g)
	}
	for _, g := range idx.bySector {
		sortGroup(g)
	}
	return idx
}

// Lookup returns up to three industry peers followed by up to two sector
// peers that were not already picked. The symbol itself is never included.
func (idx *Index) Lookup(symbol, industry, sector string) []string {
	if idx == nil {
		return nil
	}
	out := make([]string, 0, IndustryPeers+SectorPeers)
	picked := make(map[string]struct{}, IndustryPeers)

	for _, e := range idx.byIndustry[industry] {
		if len(out) >= IndustryPeers {
			break
		}
		if e.symbol == symbol {
			continue
		}
		out = append(out, e.symbol)
		picked[e.symbol] = struct{}{}
	}

	added := 0
	for _, e := range idx.bySector[sector] {
		if added >= SectorPeers {
			break
		}
		if e.symbol == symbol {
			continue
		}
		if _, dup := picked[e.symbol]; dup {
			continue
		}
		out = append(out, e.symbol)
		added++
	}
	return out
}

// Apply sets ProxyPlays on every record.
func (idx *Index) Apply(records []*models.SymbolRecord) {
	for _, r := range records {
		if r != nil {
			r.ProxyPlays = idx.Lookup(r.Symbol, r.Industry, r.Sector)
		}
	}
}

// Size returns the number of industry and sector groups.
func (idx *Index) Size() (industries, sectors int) {
	if idx == nil {
		return 0, 0
	}
	return len(idx.byIndustry), len(idx.bySector)
}

func groupable(s string) bool {
	return s != "" && s != models.UnknownClassification
}

func sortGroup(g []entry) {
	sort.Slice(g, func(i, j int) bool {
		if g[i].rs != g[j].rs {
			return g[i].rs > g[j].rs
		}
		return g[i].symbol < g[j].symbol
	})
}
