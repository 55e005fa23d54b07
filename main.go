package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/candidate"
	"keywordscout-go/pkg/crawler"
	"keywordscout-go/pkg/expand"
	"keywordscout-go/pkg/lexicon"
	"keywordscout-go/pkg/logger"
	"keywordscout-go/pkg/resolver"
	"keywordscout-go/pkg/scraper"
	"keywordscout-go/pkg/searchads"
	"keywordscout-go/pkg/store"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func main() {
	// Environment variable defaults (CI friendly)
	defaultSeeds := getEnvOrDefault("SEED_KEYWORDS", "")
	defaultDB := getEnvOrDefault("KEYWORD_DB", "data/keywords.db")
	defaultTarget := getEnvIntOrDefault("CRAWL_TARGET", 300)
	defaultMaxHops := getEnvIntOrDefault("CRAWL_MAX_HOPS", 2)
	defaultDebug := getEnvBoolOrDefault("DEBUG", false)
	defaultAPIKey := getEnvOrDefault("SEARCHADS_API_KEY", "")
	defaultSecretKey := getEnvOrDefault("SEARCHADS_SECRET_KEY", "")
	defaultCustomerID := getEnvOrDefault("SEARCHADS_CUSTOMER_ID", "")
	defaultPerMinute := getEnvIntOrDefault("BUDGET_PER_MINUTE", 20)
	defaultPerDay := getEnvIntOrDefault("BUDGET_PER_DAY", 1000)
	defaultRefill := getEnvBoolOrDefault("REFILL_HOPS", false)

	// Command line flags (override environment variables)
	var (
		seeds      = flag.String("seeds", defaultSeeds, "Comma-separated seed keywords (env: SEED_KEYWORDS)")
		dbPath     = flag.String("db", defaultDB, "Keyword database path (env: KEYWORD_DB)")
		target     = flag.Int("target", defaultTarget, "Stop after saving this many keywords (env: CRAWL_TARGET)")
		maxHops    = flag.Int("max-hops", defaultMaxHops, "Maximum BFS depth (env: CRAWL_MAX_HOPS)")
		debug      = flag.Bool("debug", defaultDebug, "Enable debug logging (env: DEBUG)")
		help       = flag.Bool("help", false, "Show help message")
		apiKey     = flag.String("api-key", defaultAPIKey, "Naver SearchAds API key (env: SEARCHADS_API_KEY)")
		secretKey  = flag.String("secret-key", defaultSecretKey, "Naver SearchAds secret key (env: SEARCHADS_SECRET_KEY)")
		customerID = flag.String("customer-id", defaultCustomerID, "Naver SearchAds customer ID (env: SEARCHADS_CUSTOMER_ID)")
		perMinute  = flag.Int("budget-per-minute", defaultPerMinute, "API calls per minute (env: BUDGET_PER_MINUTE)")
		perDay     = flag.Int("budget-per-day", defaultPerDay, "API calls per day (env: BUDGET_PER_DAY)")
		refill     = flag.Bool("refill-hops", defaultRefill, "Mine search titles of saved keywords into the next hop (env: REFILL_HOPS)")
	)

	flag.Parse()

	if *help {
		printUsage()
		return
	}

	if *seeds == "" {
		fmt.Println("ERROR: Seed keywords are required.")
		fmt.Println("Use -seeds flag or SEED_KEYWORDS environment variable.")
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}

	logCfg := logger.Config{Level: "info", Format: "console"}
	if *debug {
		logCfg.Level = "debug"
	}
	logger.SetLogger(logger.New(logCfg))
	log := logger.GetLogger().WithField("component", "main")

	seedList := strings.Split(*seeds, ",")
	for i, s := range seedList {
		seedList[i] = strings.TrimSpace(s)
	}

	if *apiKey == "" || *secretKey == "" || *customerID == "" {
		fmt.Println("WARNING: SearchAds credentials are not fully configured.")
		fmt.Println("The crawl will run in fallback mode with placeholder volumes.")
		fmt.Println("")
	}

	kwStore, err := store.Open(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open keyword store")
	}
	defer func() {
		if err := kwStore.Close(); err != nil {
			log.WithError(err).Warn("Failed to close keyword store cleanly")
		}
	}()

	lex := lexicon.Default()
	gate := budget.NewGate(budget.Limits{PerMinute: *perMinute, PerDay: *perDay})
	adsClient := searchads.NewClient(searchads.Config{
		APIKey:     *apiKey,
		SecretKey:  *secretKey,
		CustomerID: *customerID,
	})
	res := resolver.New(adsClient, kwStore, gate)

	cfg := crawler.DefaultConfig()
	cfg.Target = *target
	cfg.MaxHops = *maxHops
	cfg.RefillHops = *refill

	job := crawler.New(cfg, expand.New(lex), res, kwStore, gate)
	if *refill {
		job.SetTitleSource(scraper.New(scraper.DefaultConfig()), candidate.NewMiner(lex))
	}

	if err := job.InitializeWithSeeds(seedList); err != nil {
		log.WithError(err).Fatal("Failed to initialize crawl frontier")
	}

	log.WithFields(map[string]interface{}{
		"seeds":    len(seedList),
		"frontier": job.FrontierSize(),
		"target":   cfg.Target,
		"max_hops": cfg.MaxHops,
	}).Info("Starting keyword discovery crawl")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	startTime := time.Now()
	if err := job.Crawl(ctx); err != nil {
		log.WithError(err).Fatal("Crawl failed")
	}
	duration := time.Since(startTime)

	snap := job.Status()
	fmt.Printf("\n=== Keyword Discovery Results ===\n")
	fmt.Printf("State: %s\n", snap.State)
	fmt.Printf("Hops completed: %d\n", snap.Progress.CurrentHop)
	fmt.Printf("Attempted: %d\n", snap.Progress.Attempted)
	fmt.Printf("Collected: %d\n", snap.Progress.Collected)
	fmt.Printf("Skipped: %d\n", snap.Progress.Skipped)
	fmt.Printf("Failed: %d\n", snap.Progress.Failed)
	fmt.Printf("Duration: %s\n", duration.String())

	status := gate.GetStatus()
	fmt.Printf("\n=== Call Budget ===\n")
	fmt.Printf("Remaining this minute: %d/%d\n", status.PerMinuteRemaining, status.PerMinuteLimit)
	fmt.Printf("Remaining today: %d/%d\n", status.DailyRemaining, status.DailyLimit)

	total, err := kwStore.Count(context.Background())
	if err == nil {
		fmt.Printf("\nKeywords in store: %d\n", total)
	}
}

func printUsage() {
	fmt.Println("KeywordScout - Naver Keyword Discovery Crawler")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./keywordscout -seeds <keywords> [OPTIONS]")
	fmt.Println("    ./keywordscout  # Uses environment variables")
	fmt.Println("")
	fmt.Println("REQUIRED:")
	fmt.Println("    -seeds string          Comma-separated seed keywords (env: SEED_KEYWORDS)")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	fmt.Println("    -db string             Keyword database path (default: data/keywords.db, env: KEYWORD_DB)")
	fmt.Println("    -target int            Stop after saving this many keywords (default: 300, env: CRAWL_TARGET)")
	fmt.Println("    -max-hops int          Maximum BFS depth (default: 2, env: CRAWL_MAX_HOPS)")
	fmt.Println("    -api-key string        Naver SearchAds API key (env: SEARCHADS_API_KEY)")
	fmt.Println("    -secret-key string     Naver SearchAds secret key (env: SEARCHADS_SECRET_KEY)")
	fmt.Println("    -customer-id string    Naver SearchAds customer ID (env: SEARCHADS_CUSTOMER_ID)")
	fmt.Println("    -budget-per-minute int API calls per minute (default: 20, env: BUDGET_PER_MINUTE)")
	fmt.Println("    -budget-per-day int    API calls per day (default: 1000, env: BUDGET_PER_DAY)")
	fmt.Println("    -refill-hops           Mine search titles into the next hop (env: REFILL_HOPS)")
	fmt.Println("    -debug                 Enable debug logging (env: DEBUG)")
	fmt.Println("    -help                  Show this help message")
	fmt.Println("")
	fmt.Println("EXAMPLES:")
	fmt.Println("    ./keywordscout -seeds \"홍삼스틱,비타민d\" -target 500")
	fmt.Println("")
	fmt.Println("    export SEED_KEYWORDS=\"홍삼스틱\"")
	fmt.Println("    export SEARCHADS_API_KEY=\"...\"")
	fmt.Println("    ./keywordscout")
}
