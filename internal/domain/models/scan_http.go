package models

// Requests for scanner HTTP endpoints.

type ScanStreamRequest struct {
	Refresh   bool   `query:"refresh" json:"refresh"`
	Type      string `query:"type" json:"type" default:"all"`
	BatchSize int    `query:"batchSize" json:"batchSize" default:"25" validate:"gte=1,lte=100"`
}

func (r ScanStreamRequest) Options() ScanOptions {
	return ScanOptions{
		ForceRefresh: r.Refresh,
		Type:         NormalizeScanType(r.Type),
		BatchSize:    r.BatchSize,
	}
}

// ScanListRequest is the non-streaming scan. Stats short-circuits to the
// cache statistics without scanning.
type ScanListRequest struct {
	Refresh   bool   `query:"refresh" json:"refresh"`
	Type      string `query:"type" json:"type" default:"all"`
	Period    string `query:"period" json:"period"`
	Stats     bool   `query:"stats" json:"stats"`
	BatchSize int    `query:"batchSize" json:"batchSize" default:"25" validate:"gte=1,lte=100"`
}

func (r ScanListRequest) Options() ScanOptions {
	return ScanOptions{
		ForceRefresh: r.Refresh,
		Type:         ResolveScanType(r.Type, r.Period),
		BatchSize:    r.BatchSize,
	}
}

type SymbolRequest struct {
	Symbol  string `param:"symbol" json:"symbol" validate:"required,max=12"`
	Refresh bool   `query:"refresh" json:"refresh"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=12"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type RevalidateHTTPRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=500,dive,required,max=12"`
}
