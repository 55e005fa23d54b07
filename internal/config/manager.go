package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"keywordscout-go/pkg/scraper"
	"keywordscout-go/pkg/searchads"
)

type manager struct {
	mu     sync.RWMutex
	config *Config
	viper  *viper.Viper
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.setupViper(configPath); err != nil {
		return nil, fmt.Errorf("failed to setup viper: %w", err)
	}

	if err := m.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := m.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m.config = &config
	return &config, nil
}

func (m *manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.viper == nil {
		return fmt.Errorf("config not loaded")
	}

	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := m.validateConfig(&config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	m.config = &config
	return nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) setupViper(configPath string) error {
	m.viper.SetConfigFile(configPath)

	m.viper.SetEnvPrefix("KWSCOUT")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	m.setDefaults()

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	return nil
}

func (m *manager) setDefaults() {
	m.viper.SetDefault("server.host", "127.0.0.1")
	m.viper.SetDefault("server.port", 8380)
	m.viper.SetDefault("server.read_timeout_sec", 15)
	m.viper.SetDefault("server.write_timeout_sec", 30)

	m.viper.SetDefault("storage.database_path", "data/keywords.db")

	m.viper.SetDefault("searchads.endpoint", searchads.DefaultEndpoint)
	m.viper.SetDefault("searchads.timeout_sec", 12)
	m.viper.SetDefault("searchads.max_retries", 2)

	m.viper.SetDefault("budget.per_minute", 20)
	m.viper.SetDefault("budget.per_day", 1000)

	m.viper.SetDefault("crawler.target", 300)
	m.viper.SetDefault("crawler.max_hops", 2)
	m.viper.SetDefault("crawler.chunk_size", 10)
	m.viper.SetDefault("crawler.min_volume", 100)
	m.viper.SetDefault("crawler.concurrency", 1)
	m.viper.SetDefault("crawler.chunk_delay_ms", 500)
	m.viper.SetDefault("crawler.budget_wait_sec", 60)
	m.viper.SetDefault("crawler.refill_limit", 500)

	m.viper.SetDefault("selector.top_n", 4)
	m.viper.SetDefault("selector.max_candidates", 50)
	m.viper.SetDefault("selector.ttl_days", 30)
	m.viper.SetDefault("selector.volume_weight", 0.7)
	m.viper.SetDefault("selector.content_weight", 0.3)
	m.viper.SetDefault("selector.strategy", "all-titles")

	scraperDefaults := scraper.DefaultConfig()
	m.viper.SetDefault("scraper.endpoint", scraperDefaults.Endpoint)
	m.viper.SetDefault("scraper.user_agent", scraperDefaults.UserAgent)
	m.viper.SetDefault("scraper.timeout_sec", 10)
	m.viper.SetDefault("scraper.max_results", 30)

	m.viper.SetDefault("logger.level", "info")
	m.viper.SetDefault("logger.format", "json")
	m.viper.SetDefault("logger.output", "stdout")
}

func (m *manager) validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path cannot be empty")
	}

	if config.Budget.PerMinute <= 0 || config.Budget.PerDay <= 0 {
		return fmt.Errorf("budget limits must be positive")
	}

	if config.Crawler.ChunkSize <= 0 {
		return fmt.Errorf("crawler.chunk_size must be positive")
	}

	if config.Crawler.MaxHops <= 0 {
		return fmt.Errorf("crawler.max_hops must be positive")
	}

	if w := config.Selector.VolumeWeight + config.Selector.ContentWeight; w < 0.99 || w > 1.01 {
		return fmt.Errorf("selector weights must sum to 1.0, got %.2f", w)
	}

	return nil
}
