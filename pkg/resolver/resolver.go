// Package resolver turns keyword lists into volume/competition/CPC data,
// preferring the keyword store and degrading to zero-volume placeholders when
// the external API is unhealthy. It never fails a whole call because of the
// API: downstream code always gets a value to reason about.
package resolver

import (
	"context"
	"math"
	"time"
	"unicode/utf8"

	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/logger"
	"keywordscout-go/pkg/score"
	"keywordscout-go/pkg/searchads"
	"keywordscout-go/pkg/store"
	"keywordscout-go/pkg/text"
)

// Mode classifies the health of one resolve call.
type Mode string

const (
	// ModeSearchAds: every chunk succeeded; data is trusted and quality
	// filters apply downstream.
	ModeSearchAds Mode = "searchads"
	// ModePartial: some chunks succeeded. Filters must NOT be applied so
	// candidates seen during a degraded window are not lost.
	ModePartial Mode = "partial"
	// ModeFallback: no chunk succeeded or credentials are absent. Every
	// requested keyword gets a zero-volume placeholder.
	ModeFallback Mode = "fallback"
)

// Volume is the resolved data for one keyword.
type Volume struct {
	PC      int    `json:"pc"`
	Mobile  int    `json:"mobile"`
	Total   int    `json:"total"`
	CompIdx string `json:"comp_idx"`
	AdDepth int    `json:"ad_depth"`
	CPC     int    `json:"cpc"`

	// FromAPI distinguishes real data from fallback placeholders.
	FromAPI bool `json:"from_api"`
	// CPCFromAccount marks account-sourced CPC data.
	CPCFromAccount bool `json:"cpc_from_account"`
	// Surface is the display form the volume was requested under.
	Surface string `json:"surface"`
}

// Stats counts per-chunk outcomes for one resolve call.
type Stats struct {
	Chunks        int         `json:"chunks"`
	ChunksOK      int         `json:"chunks_ok"`
	ChunksFailed  int         `json:"chunks_failed"`
	StatusCounts  map[int]int `json:"status_counts"`
	FromStore     int         `json:"from_store"`
	APIKeywords   int         `json:"api_keywords"`
	BudgetDenials int         `json:"budget_denials"`
}

// Result is the outcome of one resolve call. Volumes is keyed by normalized
// keyword form.
type Result struct {
	Volumes map[string]Volume `json:"volumes"`
	Mode    Mode              `json:"mode"`
	Stats   Stats             `json:"stats"`
}

// TTL is the maximum age of stored volume data before it becomes eligible
// for re-fetch.
const TTL = 30 * 24 * time.Hour

// Resolver resolves keyword volumes via the searchads client, optionally
// consulting and refreshing the keyword store.
type Resolver struct {
	client searchads.Client
	store  *store.Store
	gate   *budget.Gate
	log    *logger.Logger
	now    func() time.Time
}

// New builds a resolver. store and gate may be nil for pure-API use
// (health checks, tests); ResolveWithStore requires both.
func New(client searchads.Client, kwStore *store.Store, gate *budget.Gate) *Resolver {
	return &Resolver{
		client: client,
		store:  kwStore,
		gate:   gate,
		log:    logger.GetLogger().WithField("component", "volume_resolver"),
		now:    time.Now,
	}
}

// Resolve fetches volumes for the given keywords from the external API,
// classifying the overall mode. The call itself never consumes budget; the
// caller decides how chunks are charged (the BFS crawler charges per frontier
// chunk, the selector per resolve).
func (r *Resolver) Resolve(ctx context.Context, keywords []string) (Result, error) {
	requested := dedupeKeywords(keywords)

	result := Result{
		Volumes: make(map[string]Volume, len(requested)),
		Stats:   Stats{StatusCounts: make(map[int]int)},
	}

	if len(requested) == 0 {
		result.Mode = ModeSearchAds
		return result, nil
	}

	if r.client == nil || !r.client.Enabled() {
		// Missing credentials resolve into permanent fallback, not a crash.
		r.fillPlaceholders(&result, requested)
		result.Mode = ModeFallback
		return result, nil
	}

	surfaces := make([]string, 0, len(requested))
	for _, kw := range requested {
		surfaces = append(surfaces, kw.surface)
	}

	for start := 0; start < len(surfaces); start += searchads.MaxKeywordsPerRequest {
		end := start + searchads.MaxKeywordsPerRequest
		if end > len(surfaces) {
			end = len(surfaces)
		}
		chunk := surfaces[start:end]
		result.Stats.Chunks++

		stats, status, err := r.client.FetchStats(ctx, chunk)
		result.Stats.StatusCounts[status]++
		if err != nil {
			result.Stats.ChunksFailed++
			continue
		}
		result.Stats.ChunksOK++
		result.Stats.APIKeywords += len(stats)

		for _, ks := range stats {
			key := text.Normalize(ks.Keyword)
			if key == "" {
				continue
			}
			result.Volumes[key] = Volume{
				PC:             ks.MonthlyPC,
				Mobile:         ks.MonthlyMobile,
				Total:          ks.Total(),
				CompIdx:        normalizeCompIdx(ks.CompIdx),
				AdDepth:        int(math.Round(ks.AvgAdDepth)),
				CPC:            ks.AvgCPC,
				FromAPI:        true,
				CPCFromAccount: ks.CPCFromAccount,
				Surface:        ks.Keyword,
			}
		}
	}

	switch {
	case result.Stats.ChunksFailed == 0:
		result.Mode = ModeSearchAds
	case result.Stats.ChunksOK > 0:
		result.Mode = ModePartial
	default:
		result.Mode = ModeFallback
	}

	// Degraded modes fill placeholders for everything the API did not answer
	// so callers can persist unfiltered and reconcile once the API is healthy.
	if result.Mode != ModeSearchAds {
		r.fillPlaceholders(&result, requested)
	}

	return result, nil
}

// ResolveGated charges the call budget (one unit per API chunk) before
// resolving. A denial returns ErrBudgetExhausted without touching the API.
func (r *Resolver) ResolveGated(ctx context.Context, keywords []string) (Result, error) {
	requested := dedupeKeywords(keywords)
	if len(requested) == 0 {
		return Result{Volumes: map[string]Volume{}, Mode: ModeSearchAds, Stats: Stats{StatusCounts: map[int]int{}}}, nil
	}

	chunks := (len(requested) + searchads.MaxKeywordsPerRequest - 1) / searchads.MaxKeywordsPerRequest
	if r.gate != nil {
		if decision := r.gate.CheckAndConsume(chunks); !decision.Allowed {
			return Result{}, ErrBudgetExhausted
		}
	}

	surfaces := make([]string, 0, len(requested))
	for _, kw := range requested {
		surfaces = append(surfaces, kw.surface)
	}
	return r.Resolve(ctx, surfaces)
}

// HealthCheck exercises the API with a fixed small sample and reports the mode
// it would classify, persisting nothing.
func (r *Resolver) HealthCheck(ctx context.Context) (Mode, bool) {
	sample := []string{"네이버", "블로그"}
	result, err := r.Resolve(ctx, sample)
	if err != nil {
		return ModeFallback, false
	}
	return result.Mode, result.Mode == ModeSearchAds
}

// ErrBudgetExhausted signals that the call budget denied an API refresh.
// It is flow control, not a failure: callers fall back or wait.
var ErrBudgetExhausted = budgetError{}

type budgetError struct{}

func (budgetError) Error() string { return "call budget exhausted" }

type requestedKeyword struct {
	surface string
	key     string
}

// dedupeKeywords normalizes, drops sub-2-char tokens and deduplicates,
// keeping the first surface form per normalized key.
func dedupeKeywords(keywords []string) []requestedKeyword {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]requestedKeyword, 0, len(keywords))
	for _, kw := range keywords {
		surface := text.CollapseSpaces(kw)
		key := text.Normalize(surface)
		if utf8.RuneCountInString(key) < 2 {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, requestedKeyword{surface: surface, key: key})
	}
	return out
}

func (r *Resolver) fillPlaceholders(result *Result, requested []requestedKeyword) {
	for _, kw := range requested {
		if _, ok := result.Volumes[kw.key]; ok {
			continue
		}
		result.Volumes[kw.key] = Volume{
			CompIdx: store.CompMedium,
			Surface: kw.surface,
		}
	}
}

func normalizeCompIdx(label string) string {
	switch score.CompIdxToScore(label) {
	case 20:
		return store.CompLow
	case 100:
		return store.CompHigh
	default:
		return store.CompMedium
	}
}
