package models

import (
	"strings"
	"time"
)

// ScanType selects which records a client wants to see.
type ScanType string

const (
	ScanAll         ScanType = "all"
	ScanEP          ScanType = "ep"
	Scan1M          ScanType = "1m"
	Scan3M          ScanType = "3m"
	Scan6M          ScanType = "6m"
	ScanQullamaggie ScanType = "qullamaggie"
	ScanRS          ScanType = "rs"
)

// Scan type tags attached to records.
const (
	TagEP          = "EP"
	Tag1M          = "1M Momentum"
	Tag3M          = "3M Momentum"
	Tag6M          = "6M Momentum"
	TagQullamaggie = "Qullamaggie"
)

// IsValid returns true if st is a supported scan type.
func (st ScanType) IsValid() bool {
	switch st {
	case ScanAll, ScanEP, Scan1M, Scan3M, Scan6M, ScanQullamaggie, ScanRS:
		return true
	default:
		return false
	}
}

// NormalizeScanType converts a raw query value to a scan type; unknown values
// fall back to ScanAll.
func NormalizeScanType(s string) ScanType {
	st := ScanType(strings.ToLower(strings.TrimSpace(s)))
	if st.IsValid() {
		return st
	}
	return ScanAll
}

// ResolveScanType accepts the legacy "type=momentum&period=1m" form and
// otherwise behaves like NormalizeScanType.
func ResolveScanType(typ, period string) ScanType {
	if strings.EqualFold(strings.TrimSpace(typ), "momentum") {
		switch st := NormalizeScanType(period); st {
		case Scan1M, Scan3M, Scan6M:
			return st
		}
		return ScanAll
	}
	return NormalizeScanType(typ)
}

// Performance holds 1M/3M/6M percentage returns.
type Performance struct {
	M1 float64 `json:"m1"`
	M3 float64 `json:"m3"`
	M6 float64 `json:"m6"`
}

// ScanOptions are the per-request knobs of a scan.
type ScanOptions struct {
	ForceRefresh bool
	Type         ScanType
	BatchSize    int
}

// ScanSummary is the payload of the final "complete" event.
type ScanSummary struct {
	TotalStocks       int        `json:"totalStocks"`
	TotalScanned      int        `json:"totalScanned"`
	FromCache         int        `json:"fromCache"`
	FreshlyFetched    int        `json:"freshlyFetched"`
	NeedsRevalidation int        `json:"needsRevalidation"`
	ScanTime          time.Time  `json:"scanTime"`
	CacheStats        CacheStats `json:"cacheStats"`
}

// CacheStats mirrors the tiered cache health at the end of a scan.
type CacheStats struct {
	RedisAvailable  bool  `json:"redisAvailable"`
	MemoryCacheSize int   `json:"memoryCacheSize"`
	RedisKeys       int64 `json:"redisKeys"`
}

// SymbolChange is published when a revalidation produced different data.
type SymbolChange struct {
	Symbol   string        `json:"symbol"`
	OldHash  string        `json:"oldHash,omitempty"`
	NewHash  string        `json:"newHash"`
	CachedAt time.Time     `json:"cachedAt"`
	Changed  bool          `json:"changed"`
	Record   *SymbolRecord `json:"record,omitempty"`
}

// RevalidateRequest asks the service to refresh the given symbols.
type RevalidateRequest struct {
	Symbols []string `json:"symbols"`
	Reason  string   `json:"reason,omitempty"`
}

// Snapshot is one archived record from a completed scan.
type Snapshot struct {
	ScanID       string    `json:"scanId"`
	ScannedAt    time.Time `json:"scannedAt"`
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	SetupScore   float64   `json:"setupScore"`
	IsQullaSetup bool      `json:"isQullaSetup"`
	IsEP         bool      `json:"isEP"`
	RSRating     int       `json:"rsRating"`
	Momentum1M   float64   `json:"momentum1M"`
	Momentum3M   float64   `json:"momentum3M"`
	Momentum6M   float64   `json:"momentum6M"`
	ADRPercent   float64   `json:"adrPercent"`
	Sector       string    `json:"sector"`
	Industry     string    `json:"industry"`
	DataHash     string    `json:"dataHash"`
}
