package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keywordscout-go/internal/config"
	"keywordscout-go/internal/handler"
	"keywordscout-go/internal/server"
	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/candidate"
	"keywordscout-go/pkg/expand"
	"keywordscout-go/pkg/lexicon"
	"keywordscout-go/pkg/logger"
	"keywordscout-go/pkg/resolver"
	"keywordscout-go/pkg/scraper"
	"keywordscout-go/pkg/searchads"
	"keywordscout-go/pkg/selector"
	"keywordscout-go/pkg/store"
)

type Application struct {
	configPath string
	debug      bool
}

func main() {
	app := &Application{}

	flag.StringVar(&app.configPath, "config", "config/config.yaml", "Configuration file path")
	flag.BoolVar(&app.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func (app *Application) Run() error {
	mgr := config.NewManager()
	cfg, err := mgr.Load(app.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logger
	if app.debug {
		logCfg.Level = "debug"
	}
	logger.SetLogger(logger.New(logCfg))
	log := logger.GetLogger().WithField("component", "main")

	lex, err := loadLexicon(cfg.Lexicon)
	if err != nil {
		return fmt.Errorf("load lexicon: %w", err)
	}

	kwStore, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open keyword store: %w", err)
	}
	defer func() {
		if err := kwStore.Close(); err != nil {
			log.WithError(err).Warn("failed to close keyword store cleanly")
		}
	}()

	gate := budget.NewGate(cfg.Budget)
	adsClient := searchads.NewClient(cfg.SearchAds)
	res := resolver.New(adsClient, kwStore, gate)

	selCfg := selector.Config{
		TopN:          cfg.Selector.TopN,
		MaxCandidates: cfg.Selector.MaxCandidates,
		TTLDays:       cfg.Selector.TTLDays,
		VolumeWeight:  cfg.Selector.VolumeWeight,
		ContentWeight: cfg.Selector.ContentWeight,
		Strategy:      selector.Strategy(cfg.Selector.Strategy),
	}
	sel := selector.New(selCfg, lex, kwStore, res, gate)

	expander := expand.New(lex)
	searchScraper := scraper.New(cfg.Scraper)
	miner := candidate.NewMiner(lex)

	ctrl := handler.NewController(cfg, kwStore, gate, res, sel, expander, searchScraper, miner)
	srv := server.New(cfg.Server, ctrl)

	if !adsClient.Enabled() {
		log.Warn("SearchAds credentials not configured, volume resolution runs in fallback mode")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}

	if err := srv.Shutdown(5 * time.Second); err != nil {
		log.WithError(err).Warn("server shutdown was not clean")
	}
	log.Info("server stopped")
	return nil
}

func loadLexicon(cfg config.LexiconConfig) (*lexicon.Lexicon, error) {
	if cfg.Path == "" {
		return lexicon.Default(), nil
	}
	return lexicon.Load(cfg.Path)
}
