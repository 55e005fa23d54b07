package handler

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"

	"keywordscout-go/internal/config"
	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/candidate"
	"keywordscout-go/pkg/crawler"
	"keywordscout-go/pkg/expand"
	"keywordscout-go/pkg/logger"
	"keywordscout-go/pkg/resolver"
	"keywordscout-go/pkg/scraper"
	"keywordscout-go/pkg/selector"
	"keywordscout-go/pkg/store"
)

// Controller owns the pipeline components behind the HTTP surface. The
// crawler handle is explicit state here, not an ambient global;
// status and cancel operate on the handle this controller holds.
type Controller struct {
	cfg      *config.Config
	store    *store.Store
	gate     *budget.Gate
	resolver *resolver.Resolver
	selector *selector.Selector
	expander *expand.Expander
	scraper  *scraper.SearchScraper
	miner    *candidate.Miner
	log      *logger.Logger

	mu         sync.Mutex
	crawlerJob *crawler.Crawler
	crawlCfg   crawler.Config
}

func NewController(
	cfg *config.Config,
	kwStore *store.Store,
	gate *budget.Gate,
	res *resolver.Resolver,
	sel *selector.Selector,
	expander *expand.Expander,
	searchScraper *scraper.SearchScraper,
	miner *candidate.Miner,
) *Controller {
	return &Controller{
		cfg:      cfg,
		store:    kwStore,
		gate:     gate,
		resolver: res,
		selector: sel,
		expander: expander,
		scraper:  searchScraper,
		miner:    miner,
		log:      logger.GetLogger().WithField("component", "controller"),
		crawlCfg: crawler.Config{
			Target:      cfg.Crawler.Target,
			MaxHops:     cfg.Crawler.MaxHops,
			ChunkSize:   cfg.Crawler.ChunkSize,
			MinVolume:   cfg.Crawler.MinVolume,
			RequireAds:  cfg.Crawler.RequireAds,
			Concurrency: cfg.Crawler.Concurrency,
			ChunkDelay:  cfg.Crawler.ChunkDelay(),
			BudgetWait:  cfg.Crawler.BudgetWait(),
			RefillHops:  cfg.Crawler.RefillHops,
			RefillLimit: cfg.Crawler.RefillLimit,
		},
	}
}

// Register mounts every route on the fiber app.
func (c *Controller) Register(app *fiber.App) {
	app.Get("/health", c.health)

	api := app.Group("/api")
	api.Post("/crawl", c.startCrawl)
	api.Get("/crawl/status", c.crawlStatus)
	api.Post("/crawl/cancel", c.cancelCrawl)

	api.Post("/keywords/analyze", c.analyzeTitles)
	api.Get("/keywords", c.listKeywords)
	api.Get("/keywords/rank", c.keywordRank)
	api.Get("/keywords/stats", c.keywordStats)
	api.Patch("/keywords/:id/excluded", c.setExcluded)

	api.Get("/budget", c.budgetStatus)
	api.Get("/searchads/health", c.searchAdsHealth)
}

func (c *Controller) health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}

type startCrawlRequest struct {
	Seeds   []string `json:"seeds"`
	Target  int      `json:"target"`
	MaxHops int      `json:"max_hops"`
}

func (c *Controller) startCrawl(ctx *fiber.Ctx) error {
	var req startCrawlRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Seeds) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "seeds are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crawlerJob != nil && c.crawlerJob.State() == crawler.StateRunning {
		return fiber.NewError(fiber.StatusConflict, crawler.ErrAlreadyRunning.Error())
	}

	cfg := c.crawlCfg
	if req.Target > 0 {
		cfg.Target = req.Target
	}
	if req.MaxHops > 0 {
		cfg.MaxHops = req.MaxHops
	}

	job := crawler.New(cfg, c.expander, c.resolver, c.store, c.gate)
	if c.scraper != nil && c.miner != nil {
		job.SetTitleSource(c.scraper, c.miner)
	}
	if err := job.InitializeWithSeeds(req.Seeds); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	c.crawlerJob = job

	go func() {
		if err := job.Crawl(context.Background()); err != nil {
			c.log.WithError(err).Error("crawl run failed")
		}
	}()

	return ctx.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"state":    job.State(),
		"frontier": job.FrontierSize(),
	})
}

func (c *Controller) crawlStatus(ctx *fiber.Ctx) error {
	c.mu.Lock()
	job := c.crawlerJob
	c.mu.Unlock()

	if job == nil {
		return ctx.JSON(crawler.StatusSnapshot{
			State:      crawler.StateIdle,
			CallBudget: c.gate.GetStatus(),
		})
	}

	snap := job.Status()
	return ctx.JSON(fiber.Map{
		"state":       snap.State,
		"progress":    snap.Progress,
		"call_budget": snap.CallBudget,
		"stale":       job.Stale(),
		"error":       snap.Err,
	})
}

func (c *Controller) cancelCrawl(ctx *fiber.Ctx) error {
	c.mu.Lock()
	job := c.crawlerJob
	c.mu.Unlock()

	if job == nil || job.State() != crawler.StateRunning {
		return fiber.NewError(fiber.StatusConflict, "no crawl is running")
	}
	job.Cancel()
	return ctx.JSON(fiber.Map{"cancelled": true})
}

type analyzeRequest struct {
	Titles       []string `json:"titles"`
	TopN         int      `json:"top_n"`
	Combinations bool     `json:"combinations"`
}

func (c *Controller) analyzeTitles(ctx *fiber.Ctx) error {
	var req analyzeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Titles) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "titles are required")
	}

	var (
		selection selector.Selection
		err       error
	)
	if req.Combinations {
		selection, err = c.selector.SelectWithCombinations(ctx.Context(), req.Titles, req.TopN)
	} else {
		selection, err = c.selector.SelectTopN(ctx.Context(), req.Titles, req.TopN)
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return ctx.JSON(selection)
}

func (c *Controller) listKeywords(ctx *fiber.Ctx) error {
	opts := store.ListOptions{
		Excluded: ctx.QueryBool("excluded", false),
		OrderBy:  ctx.Query("order_by", "score"),
		Dir:      ctx.Query("dir", "desc"),
		Limit:    ctx.QueryInt("limit", 0),
	}

	records, err := c.store.List(ctx.Context(), opts)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ctx.JSON(fiber.Map{"keywords": records, "count": len(records)})
}

// keywordRank reports the 1-based search exposure position of a blog for a
// keyword, 0 when the blog is absent from the first result page.
func (c *Controller) keywordRank(ctx *fiber.Ctx) error {
	keyword := ctx.Query("keyword")
	blogURL := ctx.Query("blog_url")
	if keyword == "" || blogURL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "keyword and blog_url are required")
	}
	if c.scraper == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "search scraping is disabled")
	}

	rank := c.scraper.RankOf(ctx.Context(), keyword, blogURL)
	return ctx.JSON(fiber.Map{
		"keyword":  keyword,
		"blog_url": blogURL,
		"rank":     rank,
		"exposed":  rank > 0,
	})
}

func (c *Controller) keywordStats(ctx *fiber.Ctx) error {
	counts, err := c.store.CountsByStatus(ctx.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return ctx.JSON(counts)
}

type setExcludedRequest struct {
	Excluded bool `json:"excluded"`
}

func (c *Controller) setExcluded(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid keyword id")
	}

	var req setExcludedRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := c.store.SetExcluded(ctx.Context(), int64(id), req.Excluded); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return ctx.JSON(fiber.Map{"id": id, "excluded": req.Excluded})
}

func (c *Controller) budgetStatus(ctx *fiber.Ctx) error {
	return ctx.JSON(c.gate.GetStatus())
}

func (c *Controller) searchAdsHealth(ctx *fiber.Ctx) error {
	mode, healthy := c.resolver.HealthCheck(ctx.Context())
	return ctx.JSON(fiber.Map{"mode": mode, "healthy": healthy})
}
