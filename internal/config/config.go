package config

import (
	"time"

	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/logger"
	"keywordscout-go/pkg/scraper"
	"keywordscout-go/pkg/searchads"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Storage   StorageConfig    `mapstructure:"storage"`
	SearchAds searchads.Config `mapstructure:"searchads"`
	Budget    budget.Limits    `mapstructure:"budget"`
	Crawler   CrawlerConfig    `mapstructure:"crawler"`
	Selector  SelectorConfig   `mapstructure:"selector"`
	Scraper   scraper.Config   `mapstructure:"scraper"`
	Lexicon   LexiconConfig    `mapstructure:"lexicon"`
	Logger    logger.Config    `mapstructure:"logger"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec"`
}

type StorageConfig struct {
	// DatabasePath is the sqlite keyword database file.
	DatabasePath string `mapstructure:"database_path"`
}

type CrawlerConfig struct {
	Target        int  `mapstructure:"target"`
	MaxHops       int  `mapstructure:"max_hops"`
	ChunkSize     int  `mapstructure:"chunk_size"`
	MinVolume     int  `mapstructure:"min_volume"`
	RequireAds    bool `mapstructure:"require_ads"`
	Concurrency   int  `mapstructure:"concurrency"`
	ChunkDelayMs  int  `mapstructure:"chunk_delay_ms"`
	BudgetWaitSec int  `mapstructure:"budget_wait_sec"`
	RefillHops    bool `mapstructure:"refill_hops"`
	RefillLimit   int  `mapstructure:"refill_limit"`
}

func (c CrawlerConfig) ChunkDelay() time.Duration {
	return time.Duration(c.ChunkDelayMs) * time.Millisecond
}

func (c CrawlerConfig) BudgetWait() time.Duration {
	return time.Duration(c.BudgetWaitSec) * time.Second
}

type SelectorConfig struct {
	TopN          int     `mapstructure:"top_n"`
	MaxCandidates int     `mapstructure:"max_candidates"`
	TTLDays       int     `mapstructure:"ttl_days"`
	VolumeWeight  float64 `mapstructure:"volume_weight"`
	ContentWeight float64 `mapstructure:"content_weight"`
	Strategy      string  `mapstructure:"strategy"`
}

type LexiconConfig struct {
	// Path to a YAML lexicon document; empty uses the built-in default.
	Path string `mapstructure:"path"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
	Reload() error
	GetConfig() *Config
}
