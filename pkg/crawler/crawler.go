// Package crawler implements the BFS keyword discovery run: seed expansion
// loads a frontier, each hop is processed in fixed chunks where volumes
// fresher than the TTL are served from the keyword store and only the
// remainder goes through the volume resolver under the call-budget gate, and
// surviving keywords are scored and persisted.
package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/expand"
	"keywordscout-go/pkg/logger"
	"keywordscout-go/pkg/resolver"
	"keywordscout-go/pkg/score"
	"keywordscout-go/pkg/store"
	"keywordscout-go/pkg/text"
)

// State of a crawler instance.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateError     State = "error"
)

var (
	// ErrEmptyFrontier: seed expansion produced no valid keywords. This is a
	// caller-data problem, distinct from steady-state per-keyword misses.
	ErrEmptyFrontier = errors.New("no valid keywords to crawl: frontier is empty after expansion")
	// ErrAlreadyRunning guards against re-entrant crawl starts.
	ErrAlreadyRunning = errors.New("crawler is already running")
	// ErrNotInitialized: Crawl was called before InitializeWithSeeds.
	ErrNotInitialized = errors.New("crawler has no frontier: initialize with seeds first")
)

// stalenessWindow is how long a running crawler may go without a progress
// update before Stale() reports true. Staleness is exposed for callers to
// decide on abandonment; the crawler never self-terminates on it.
const stalenessWindow = 5 * time.Minute

// VolumeResolver is the slice of the resolver the crawler consumes.
// FreshVolumes partitions a chunk into store-served volumes younger than the
// TTL and the remainder that needs an API resolve; only the remainder is
// charged against the call budget.
type VolumeResolver interface {
	Resolve(ctx context.Context, keywords []string) (resolver.Result, error)
	FreshVolumes(ctx context.Context, keywords []string) (map[string]resolver.Volume, []string, error)
}

// KeywordSink is the slice of the keyword store the crawler writes through.
type KeywordSink interface {
	Upsert(ctx context.Context, records []store.KeywordRecord) (int, error)
}

// Config bounds one crawl run.
type Config struct {
	Target      int           `mapstructure:"target"`       // stop after this many newly saved keywords
	MaxHops     int           `mapstructure:"max_hops"`     // BFS depth bound
	ChunkSize   int           `mapstructure:"chunk_size"`   // keywords per budget unit
	MinVolume   int           `mapstructure:"min_volume"`   // searchads-mode quality floor
	RequireAds  bool          `mapstructure:"require_ads"`  // searchads-mode has-ads filter
	Concurrency int           `mapstructure:"concurrency"`  // 1 inserts the inter-chunk delay
	ChunkDelay  time.Duration `mapstructure:"chunk_delay"`  // delay between chunks at concurrency 1
	BudgetWait  time.Duration `mapstructure:"budget_wait"`  // sleep before retrying a denied chunk
	RefillHops  bool          `mapstructure:"refill_hops"`  // mine titles of saved keywords into the next hop
	RefillLimit int           `mapstructure:"refill_limit"` // frontier entries added per hop by refill
}

// DefaultConfig returns the bounds used by the standard discovery run.
func DefaultConfig() Config {
	return Config{
		Target:      300,
		MaxHops:     2,
		ChunkSize:   10,
		MinVolume:   100,
		RequireAds:  false,
		Concurrency: 1,
		ChunkDelay:  500 * time.Millisecond,
		BudgetWait:  60 * time.Second,
		RefillLimit: 500,
	}
}

// placeholderScore is assigned in degraded resolver modes: the system
// explicitly avoids computing a real score on data it does not trust yet.
const placeholderScore = 30

// Progress counters for one run.
type Progress struct {
	CurrentHop   int `json:"current_hop"`
	Attempted    int `json:"attempted"`
	Collected    int `json:"collected"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	FrontierSize int `json:"frontier_size"`
	VisitedSize  int `json:"visited_size"`
	CurrentChunk int `json:"current_chunk"`
	TotalChunks  int `json:"total_chunks"`
}

// StatusSnapshot is the polled status surface.
type StatusSnapshot struct {
	State      State         `json:"state"`
	Progress   Progress      `json:"progress"`
	CallBudget budget.Status `json:"call_budget"`
	Err        string        `json:"error,omitempty"`
}

// TitleSource supplies result titles for a keyword; used only for optional
// hop refill.
type TitleSource interface {
	Titles(ctx context.Context, keyword string) []string
}

// CandidateMiner extracts frontier candidates from titles during hop refill.
type CandidateMiner interface {
	Mine(titles []string) []string
}

// Crawler runs one BFS discovery job. A caller holds the handle explicitly:
// there is no ambient global instance.
type Crawler struct {
	cfg      Config
	expander *expand.Expander
	resolver VolumeResolver
	sink     KeywordSink
	gate     *budget.Gate
	log      *logger.Logger
	reporter *logger.CrawlProgressReporter

	titles TitleSource
	miner  CandidateMiner

	mu           sync.Mutex
	state        State
	frontier     []string
	frontierSet  map[string]struct{}
	visited      map[string]struct{}
	progress     Progress
	lastProgress time.Time
	cancelled    bool
	runErr       error

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a crawler in idle state.
func New(cfg Config, expander *expand.Expander, res VolumeResolver, sink KeywordSink, gate *budget.Gate) *Crawler {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 1
	}
	return &Crawler{
		cfg:          cfg,
		expander:     expander,
		resolver:     res,
		sink:         sink,
		gate:         gate,
		log:          logger.GetLogger().WithField("component", "bfs_crawler"),
		state:        StateIdle,
		frontierSet:  make(map[string]struct{}),
		visited:      make(map[string]struct{}),
		lastProgress: time.Now(),
		sleep:        sleepCtx,
	}
}

// SetTitleSource wires the optional hop-refill collaborators.
func (c *Crawler) SetTitleSource(titles TitleSource, miner CandidateMiner) {
	c.titles = titles
	c.miner = miner
}

// InitializeWithSeeds expands the seeds and loads the whole expanded set into
// the frontier. The keyword store is deliberately NOT consulted to exclude
// known keywords: stored volume data can be stale and due for refresh, so
// frontier membership is never gated on the store.
func (c *Crawler) InitializeWithSeeds(seeds []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return ErrAlreadyRunning
	}

	expanded := c.expander.ExpandAll(seeds)
	if len(expanded) == 0 {
		c.state = StateError
		c.runErr = ErrEmptyFrontier
		return ErrEmptyFrontier
	}

	c.frontier = expanded
	c.frontierSet = make(map[string]struct{}, len(expanded))
	for _, kw := range expanded {
		c.frontierSet[text.Normalize(kw)] = struct{}{}
	}
	c.visited = make(map[string]struct{})
	c.progress = Progress{FrontierSize: len(expanded)}
	c.state = StateIdle
	c.runErr = nil
	c.cancelled = false

	c.log.WithFields(map[string]interface{}{
		"seeds":    len(seeds),
		"frontier": len(expanded),
	}).Info("crawler initialized")
	return nil
}

// FrontierSize returns the number of keywords awaiting processing.
func (c *Crawler) FrontierSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frontier)
}

// Crawl runs the BFS loop until the target is reached, the hop bound is hit
// or the frontier is exhausted. Re-entrant calls on a running instance fail
// immediately.
func (c *Crawler) Crawl(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateRunning {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(c.frontier) == 0 {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.state = StateRunning
	c.cancelled = false
	c.runErr = nil
	c.lastProgress = time.Now()
	target := c.cfg.Target
	c.mu.Unlock()

	c.reporter = logger.NewCrawlProgressReporter(target)

	err := c.run(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateError
		c.runErr = err
		return err
	}
	if c.cancelled {
		// Cancellation is a state flip, not an error.
		c.state = StateIdle
		return nil
	}
	c.state = StateCompleted
	c.reporter.Complete()
	return nil
}

func (c *Crawler) run(ctx context.Context) error {
	for hop := 0; hop < c.cfg.MaxHops; hop++ {
		c.mu.Lock()
		frontier := c.frontier
		c.frontier = nil
		c.progress.CurrentHop = hop
		c.progress.FrontierSize = len(frontier)
		done := c.progress.Collected >= c.cfg.Target
		c.mu.Unlock()

		if done || len(frontier) == 0 {
			return nil
		}

		if err := c.processHop(ctx, hop, frontier); err != nil {
			return err
		}

		if c.isCancelled() {
			return nil
		}
	}
	return nil
}

func (c *Crawler) processHop(ctx context.Context, hop int, frontier []string) error {
	totalChunks := (len(frontier) + c.cfg.ChunkSize - 1) / c.cfg.ChunkSize

	c.mu.Lock()
	c.progress.TotalChunks = totalChunks
	c.mu.Unlock()

	for i := 0; i < totalChunks; i++ {
		if c.isCancelled() {
			return nil
		}

		c.mu.Lock()
		collected := c.progress.Collected
		c.progress.CurrentChunk = i + 1
		c.mu.Unlock()
		if collected >= c.cfg.Target {
			return nil
		}

		startIdx := i * c.cfg.ChunkSize
		endIdx := startIdx + c.cfg.ChunkSize
		if endIdx > len(frontier) {
			endIdx = len(frontier)
		}
		chunk := frontier[startIdx:endIdx]

		// Store-first: volumes fresher than the TTL are served without API
		// contact, so a chunk only costs budget when part of it is stale or
		// unknown.
		fresh, remainder, err := c.resolver.FreshVolumes(ctx, chunk)
		if err != nil {
			return err
		}

		if len(remainder) > 0 {
			// One budget unit per chunk needing the API. A denial pauses and
			// retries the same chunk: budget exhaustion is flow control, never
			// a dropped chunk.
			for {
				decision := c.gate.CheckAndConsume(1)
				if decision.Allowed {
					break
				}
				c.log.WithField("reason", decision.Reason).Info("call budget denied, waiting")
				if err := c.sleep(ctx, c.cfg.BudgetWait); err != nil {
					return err
				}
				if c.isCancelled() {
					return nil
				}
			}
		}

		if err := c.processChunk(ctx, hop, chunk, fresh, remainder); err != nil {
			return err
		}

		c.reporter.Update(c.snapshotCollected(), hop)

		// At concurrency 1 a short delay serializes external load.
		if c.cfg.Concurrency <= 1 && c.cfg.ChunkDelay > 0 && i+1 < totalChunks {
			if err := c.sleep(ctx, c.cfg.ChunkDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Crawler) processChunk(ctx context.Context, hop int, chunk []string, fresh map[string]resolver.Volume, remainder []string) error {
	result := resolver.Result{Volumes: map[string]resolver.Volume{}, Mode: resolver.ModeSearchAds}
	var resolveErr error
	if len(remainder) > 0 {
		result, resolveErr = c.resolver.Resolve(ctx, remainder)
	}

	// Every keyword in the chunk is visited regardless of outcome.
	c.mu.Lock()
	for _, kw := range chunk {
		c.visited[text.Normalize(kw)] = struct{}{}
	}
	c.progress.Attempted += len(chunk)
	c.progress.VisitedSize = len(c.visited)
	c.lastProgress = time.Now()
	c.mu.Unlock()

	if resolveErr != nil {
		// Resolver errors here are structural (the resolver absorbs external
		// failures into its mode); count the chunk and surface the error.
		c.mu.Lock()
		c.progress.Failed += len(remainder)
		c.mu.Unlock()
		return resolveErr
	}

	var toSave []store.KeywordRecord
	var saved []string
	freshServed := 0

	for _, kw := range chunk {
		key := text.Normalize(kw)

		if vol, ok := fresh[key]; ok {
			// Store-served volume within the TTL. The data is trusted, so the
			// quality filters apply, but nothing is re-written: updated_at
			// keeps marking the last real API contact.
			if vol.Total < c.cfg.MinVolume || (c.cfg.RequireAds && vol.AdDepth == 0) {
				c.mu.Lock()
				c.progress.Skipped++
				c.mu.Unlock()
				continue
			}
			freshServed++
			saved = append(saved, kw)
			continue
		}

		vol, ok := result.Volumes[key]
		if !ok {
			// Normal: not every candidate exists in the ads system.
			c.mu.Lock()
			c.progress.Skipped++
			c.mu.Unlock()
			continue
		}

		if result.Mode == resolver.ModeSearchAds {
			// Trusted data: quality filters apply.
			if vol.Total < c.cfg.MinVolume {
				c.mu.Lock()
				c.progress.Skipped++
				c.mu.Unlock()
				continue
			}
			if c.cfg.RequireAds && vol.AdDepth == 0 {
				c.mu.Lock()
				c.progress.Skipped++
				c.mu.Unlock()
				continue
			}
			toSave = append(toSave, c.recordFor(kw, vol, true))
		} else {
			// Degraded mode: persist unfiltered so candidates seen during an
			// outage are reconciled later instead of being lost.
			toSave = append(toSave, c.recordFor(kw, vol, false))
		}
		saved = append(saved, kw)
	}

	if freshServed > 0 {
		c.mu.Lock()
		c.progress.Collected += freshServed
		c.lastProgress = time.Now()
		c.mu.Unlock()
	}

	if len(toSave) > 0 {
		n, err := c.sink.Upsert(ctx, toSave)
		if err != nil {
			c.log.WithError(err).Warn("chunk upsert failed")
			c.mu.Lock()
			c.progress.Failed += len(toSave)
			c.mu.Unlock()
		} else {
			c.mu.Lock()
			c.progress.Collected += n
			c.lastProgress = time.Now()
			c.mu.Unlock()
		}
	}

	if c.cfg.RefillHops && hop+1 < c.cfg.MaxHops {
		c.refillFrontier(ctx, saved)
	}

	return nil
}

func (c *Crawler) recordFor(surface string, vol resolver.Volume, trusted bool) store.KeywordRecord {
	compScore := score.CompIdxToScore(vol.CompIdx)
	cpc := vol.CPC

	finalScore := placeholderScore
	if trusted {
		finalScore = score.OverallScore(vol.Total, compScore, vol.AdDepth, cpc)
	}

	cpcSource := store.CPCSourceEstimated
	if vol.CPCFromAccount {
		cpcSource = store.CPCSourceAccount
	}
	if cpc == 0 {
		cpcSource = store.CPCSourceUnknown
	}

	return store.KeywordRecord{
		Text:         surface,
		RawVolume:    vol.Total,
		CompIdx:      vol.CompIdx,
		CompScore:    compScore,
		AdDepth:      vol.AdDepth,
		EstCPCKrw:    &cpc,
		EstCPCSource: cpcSource,
		Score:        finalScore,
		Source:       store.SourceBFS,
	}
}

// refillFrontier mines search-result titles of freshly saved keywords into
// the next hop. Visited membership does not gate frontier inclusion (stale
// volume data stays refreshable); only current-frontier duplicates are
// dropped.
func (c *Crawler) refillFrontier(ctx context.Context, saved []string) {
	if c.titles == nil || c.miner == nil {
		return
	}

	for _, kw := range saved {
		titles := c.titles.Titles(ctx, kw)
		if len(titles) == 0 {
			continue
		}
		for _, mined := range c.miner.Mine(titles) {
			key := text.Normalize(mined)
			if key == "" {
				continue
			}

			c.mu.Lock()
			if _, inFrontier := c.frontierSet[key]; inFrontier {
				c.mu.Unlock()
				continue
			}
			if c.cfg.RefillLimit > 0 && len(c.frontier) >= c.cfg.RefillLimit {
				c.mu.Unlock()
				return
			}
			c.frontierSet[key] = struct{}{}
			c.frontier = append(c.frontier, mined)
			c.mu.Unlock()
		}
	}
}

// Cancel requests a stop. In-flight chunk processing is not interrupted; the
// request takes effect at the next loop boundary.
func (c *Crawler) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		c.cancelled = true
	}
}

// Stale reports whether a running crawler has made no progress within the
// staleness window.
func (c *Crawler) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning && time.Since(c.lastProgress) > stalenessWindow
}

// Status returns the polled status snapshot, including call-budget state.
func (c *Crawler) Status() StatusSnapshot {
	c.mu.Lock()
	progress := c.progress
	progress.FrontierSize = len(c.frontier)
	progress.VisitedSize = len(c.visited)
	state := c.state
	runErr := c.runErr
	c.mu.Unlock()

	snap := StatusSnapshot{
		State:    state,
		Progress: progress,
	}
	if c.gate != nil {
		snap.CallBudget = c.gate.GetStatus()
	}
	if runErr != nil {
		snap.Err = runErr.Error()
	}
	return snap
}

// State returns the current lifecycle state.
func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Crawler) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *Crawler) snapshotCollected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.Collected
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
