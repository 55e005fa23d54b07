package store

import "time"

// Competition index labels stored in comp_idx.
const (
	CompLow    = "low"
	CompMedium = "medium"
	CompHigh   = "high"
)

// CPC provenance values for est_cpc_source.
const (
	CPCSourceAccount   = "account"
	CPCSourceEstimated = "estimated"
	CPCSourceUnknown   = "unknown"
)

// Keyword provenance tags for the source column.
const (
	SourceSearchAds       = "searchads"
	SourceBFS             = "bfs"
	SourceTitleAnalysis   = "title-analysis"
	SourceAutoEnrich      = "auto-enrich"
	SourceAutoCombination = "auto-combination"
)

// KeywordRecord is the durable keyword unit. Text is the sole natural key;
// upserts are idempotent on it. HasAds always equals AdDepth > 0; the store
// enforces the invariant on every write.
type KeywordRecord struct {
	ID           int64     `json:"id"`
	Text         string    `json:"text"`
	RawVolume    int       `json:"raw_volume"`
	CompIdx      string    `json:"comp_idx"`
	CompScore    int       `json:"comp_score"`
	AdDepth      int       `json:"ad_depth"`
	HasAds       bool      `json:"has_ads"`
	EstCPCKrw    *int      `json:"est_cpc_krw"`
	EstCPCSource string    `json:"est_cpc_source"`
	Score        int       `json:"score"`
	Excluded     bool      `json:"excluded"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StaleAfter reports whether the record's volume data is older than ttl and
// therefore eligible for re-fetch.
func (r KeywordRecord) StaleAfter(ttl time.Duration, now time.Time) bool {
	return now.Sub(r.UpdatedAt) > ttl
}

// CountsByStatus summarizes the keyword table for status endpoints.
type CountsByStatus struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Excluded   int `json:"excluded"`
	WithVolume int `json:"with_volume"`
}
