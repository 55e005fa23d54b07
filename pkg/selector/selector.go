// Package selector picks the top-N keywords for a batch of analyzed post
// titles, escalating through three strategies: DB-only lookup, budget-gated
// API refresh, and a pure frequency fallback with placeholder fields.
package selector

import (
	"context"
	"sort"
	"strings"
	"time"

	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/candidate"
	"keywordscout-go/pkg/lexicon"
	"keywordscout-go/pkg/logger"
	"keywordscout-go/pkg/resolver"
	"keywordscout-go/pkg/score"
	"keywordscout-go/pkg/store"
	"keywordscout-go/pkg/text"
)

// Selection modes, in escalation order.
const (
	ModeDBOnly     = "db"
	ModeAPIRefresh = "api-refresh"
	ModeFrequency  = "frequency"
)

// Strategy controls which titles participate in candidate extraction.
type Strategy string

const (
	// StrategyAllTitles mines every supplied title (default).
	StrategyAllTitles Strategy = "all-titles"
	// StrategySeedFiltered restricts mining to titles containing the seed
	// keyword. Kept as an explicit opt-in for callers that want the older,
	// stricter relevance behavior.
	StrategySeedFiltered Strategy = "seed-filtered"
)

// Config bounds the selector.
type Config struct {
	TopN          int      `mapstructure:"top_n"`
	MaxCandidates int      `mapstructure:"max_candidates"`
	TTLDays       int      `mapstructure:"ttl_days"`
	VolumeWeight  float64  `mapstructure:"volume_weight"`
	ContentWeight float64  `mapstructure:"content_weight"`
	Strategy      Strategy `mapstructure:"strategy"`
	SeedKeyword   string   `mapstructure:"-"`
}

// DefaultConfig is the 70/30 volume-dominant split over all titles.
func DefaultConfig() Config {
	return Config{
		TopN:          4,
		MaxCandidates: 50,
		TTLDays:       30,
		VolumeWeight:  score.DefaultVolumeWeight,
		ContentWeight: score.DefaultContentWeight,
		Strategy:      StrategyAllTitles,
	}
}

// Item is one selected keyword.
type Item struct {
	Text          string `json:"text"`
	RawVolume     int    `json:"raw_volume"`
	Score         int    `json:"score"`
	CombinedScore int    `json:"combined_score"`
	Frequency     int    `json:"frequency"`
	// Placeholder marks frequency-fallback results whose volume/score fields
	// are zeroed, so callers can tell real data from filler.
	Placeholder bool `json:"placeholder"`
	// Combined marks combination-built entries.
	Combined bool `json:"combined,omitempty"`
}

// Stats describes what one selection did.
type Stats struct {
	Candidates   int `json:"candidates"`
	DBHits       int `json:"db_hits"`
	APIRefreshed int `json:"api_refreshed"`
}

// Selection is the outcome of SelectTopN.
type Selection struct {
	Items []Item `json:"items"`
	Mode  string `json:"mode"`
	Stats Stats  `json:"stats"`
}

// Selector wires the candidate extractor, keyword store, resolver and call
// budget into the per-post selection pipeline.
type Selector struct {
	cfg       Config
	extractor *candidate.Extractor
	store     *store.Store
	resolver  *resolver.Resolver
	gate      *budget.Gate
	log       *logger.Logger
	now       func() time.Time
}

func New(cfg Config, lex *lexicon.Lexicon, kwStore *store.Store, res *resolver.Resolver, gate *budget.Gate) *Selector {
	if cfg.TopN <= 0 {
		cfg.TopN = 4
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 50
	}
	if cfg.TTLDays <= 0 {
		cfg.TTLDays = 30
	}
	if cfg.VolumeWeight == 0 && cfg.ContentWeight == 0 {
		cfg.VolumeWeight = score.DefaultVolumeWeight
		cfg.ContentWeight = score.DefaultContentWeight
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyAllTitles
	}
	return &Selector{
		cfg:       cfg,
		extractor: candidate.NewExtractor(lex),
		store:     kwStore,
		resolver:  res,
		gate:      gate,
		log:       logger.GetLogger().WithField("component", "title_selector"),
		now:       time.Now,
	}
}

// SelectTopN runs the pipeline strictly in order, short-circuiting on the
// first strategy that yields at least n qualified keywords.
func (s *Selector) SelectTopN(ctx context.Context, titles []string, n int) (Selection, error) {
	if n <= 0 {
		n = s.cfg.TopN
	}

	titles = s.filterTitles(titles)
	candidates := s.extractor.Extract(titles)
	ranked := candidate.Ranked(candidates)
	stats := Stats{Candidates: len(ranked)}

	if len(ranked) == 0 {
		return Selection{Items: []Item{}, Mode: ModeFrequency, Stats: stats}, nil
	}

	// Stage 1: DB-only.
	items, err := s.lookupQualified(ctx, ranked)
	if err != nil {
		return Selection{}, err
	}
	stats.DBHits = len(items)
	if len(items) >= n {
		return Selection{Items: rankItems(items)[:n], Mode: ModeDBOnly, Stats: stats}, nil
	}

	// Stage 2: API refresh. Runs only under all of: too few DB hits, a bounded
	// candidate set, remaining call budget, and per-candidate staleness or
	// absence.
	if len(ranked) <= s.cfg.MaxCandidates && s.budgetRemaining() {
		refreshed, err := s.apiRefresh(ctx, ranked)
		if err != nil && err != resolver.ErrBudgetExhausted {
			return Selection{}, err
		}
		stats.APIRefreshed = refreshed

		if refreshed > 0 {
			items, err = s.lookupQualified(ctx, ranked)
			if err != nil {
				return Selection{}, err
			}
			if len(items) >= n {
				return Selection{Items: rankItems(items)[:n], Mode: ModeAPIRefresh, Stats: stats}, nil
			}
		}
	}

	// Stage 3: frequency fallback. Placeholder items ranked purely by
	// extraction frequency, labeled so callers can tell them apart.
	if len(items) > 0 {
		// Partial real data still wins over pure placeholders.
		items = rankItems(items)
		if len(items) > n {
			items = items[:n]
		}
		mode := ModeDBOnly
		if stats.APIRefreshed > 0 {
			mode = ModeAPIRefresh
		}
		return Selection{Items: items, Mode: mode, Stats: stats}, nil
	}

	fallback := make([]Item, 0, n)
	for _, c := range ranked {
		if len(fallback) == n {
			break
		}
		fallback = append(fallback, Item{
			Text:        c.Surface,
			Frequency:   c.Frequency,
			Placeholder: true,
		})
	}
	return Selection{Items: fallback, Mode: ModeFrequency, Stats: stats}, nil
}

// lookupQualified resolves candidates against the store by normalized-key
// equivalence, trying both the raw surface and its space-stripped variant.
// Only non-excluded records with positive volume qualify.
func (s *Selector) lookupQualified(ctx context.Context, ranked []*candidate.Candidate) ([]Item, error) {
	var variants []string
	variantOwner := make(map[string]*candidate.Candidate)
	for _, c := range ranked {
		for _, v := range surfaceVariants(c.Surface) {
			variants = append(variants, v)
			variantOwner[v] = c
		}
	}

	found, err := s.store.FindByTexts(ctx, variants)
	if err != nil {
		return nil, err
	}

	best := make(map[string]Item) // normalized key -> item
	for variant, rec := range found {
		c := variantOwner[variant]
		if c == nil {
			continue
		}
		if rec.Excluded || rec.RawVolume <= 0 {
			continue
		}

		item := Item{
			Text:          rec.Text,
			RawVolume:     rec.RawVolume,
			Score:         rec.Score,
			CombinedScore: s.combined(rec.Score, c.Frequency),
			Frequency:     c.Frequency,
		}

		key := text.Normalize(rec.Text)
		if prev, ok := best[key]; !ok || item.RawVolume > prev.RawVolume {
			best[key] = item
		}
	}

	items := make([]Item, 0, len(best))
	for _, item := range best {
		items = append(items, item)
	}
	return items, nil
}

// apiRefresh resolves the stale-or-absent candidates' surface variants and
// upserts the results that carry real API data. Degraded-mode placeholders
// are never written: a zero-volume row would read as fresh and mask the
// keyword from real resolution for a full TTL. Returns the number of
// keywords written.
func (s *Selector) apiRefresh(ctx context.Context, ranked []*candidate.Candidate) (int, error) {
	ttl := time.Duration(s.cfg.TTLDays) * 24 * time.Hour
	now := s.now()

	var toResolve []string
	for _, c := range ranked {
		variants := surfaceVariants(c.Surface)

		stale := true
		for _, v := range variants {
			rec, err := s.store.FindByText(ctx, v)
			if err != nil {
				return 0, err
			}
			if rec != nil && !rec.StaleAfter(ttl, now) {
				stale = false
				break
			}
		}
		if stale {
			toResolve = append(toResolve, variants...)
		}
	}

	if len(toResolve) == 0 {
		return 0, nil
	}

	result, err := s.resolver.ResolveGated(ctx, toResolve)
	if err != nil {
		return 0, err
	}

	var records []store.KeywordRecord
	for _, vol := range result.Volumes {
		if !vol.FromAPI {
			continue
		}
		records = append(records, s.recordFor(vol))
	}

	if len(records) == 0 {
		return 0, nil
	}
	n, err := s.store.Upsert(ctx, records)
	if err != nil {
		return n, err
	}
	return n, nil
}

func (s *Selector) recordFor(vol resolver.Volume) store.KeywordRecord {
	compScore := score.CompIdxToScore(vol.CompIdx)
	cpc := vol.CPC

	cpcSource := store.CPCSourceEstimated
	if vol.CPCFromAccount {
		cpcSource = store.CPCSourceAccount
	}
	if cpc == 0 {
		cpcSource = store.CPCSourceUnknown
	}

	return store.KeywordRecord{
		Text:         vol.Surface,
		RawVolume:    vol.Total,
		CompIdx:      vol.CompIdx,
		CompScore:    compScore,
		AdDepth:      vol.AdDepth,
		EstCPCKrw:    &cpc,
		EstCPCSource: cpcSource,
		Score:        score.OverallScore(vol.Total, compScore, vol.AdDepth, cpc),
		Source:       store.SourceTitleAnalysis,
	}
}

// combined blends the record's volume-derived score with a frequency-derived
// content signal under the configured split.
func (s *Selector) combined(volumeScore, frequency int) int {
	contentScore := frequency * 10
	if contentScore > 100 {
		contentScore = 100
	}
	return score.CombinedScore(volumeScore, contentScore, s.cfg.VolumeWeight, s.cfg.ContentWeight)
}

func (s *Selector) budgetRemaining() bool {
	if s.gate == nil {
		return true
	}
	status := s.gate.GetStatus()
	return status.PerMinuteRemaining > 0 && status.DailyRemaining > 0
}

func (s *Selector) filterTitles(titles []string) []string {
	if s.cfg.Strategy != StrategySeedFiltered || s.cfg.SeedKeyword == "" {
		return titles
	}
	seedKey := text.Normalize(s.cfg.SeedKeyword)
	var kept []string
	for _, t := range titles {
		if strings.Contains(text.Normalize(t), seedKey) {
			kept = append(kept, t)
		}
	}
	return kept
}

// rankItems orders by combined score desc, then raw volume desc, then
// frequency desc. Text ascending is a final stabilizer so equal items have a
// reproducible order.
func rankItems(items []Item) []Item {
	out := append([]Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		if out[i].RawVolume != out[j].RawVolume {
			return out[i].RawVolume > out[j].RawVolume
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// surfaceVariants returns the raw surface plus its space-stripped form when
// they differ.
func surfaceVariants(surface string) []string {
	stripped := text.StripSpaces(surface)
	if stripped == surface {
		return []string{surface}
	}
	return []string{surface, stripped}
}
