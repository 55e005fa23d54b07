package searchads

// MaxKeywordsPerRequest is the volume API's batch cap. Longer lists must be
// chunked by the caller.
const MaxKeywordsPerRequest = 5

// DefaultEndpoint is the keyword tool endpoint of the Naver SearchAds API.
const DefaultEndpoint = "https://api.searchad.naver.com/keywordstool"

// KeywordStats is the per-keyword payload of a volume API response.
type KeywordStats struct {
	Keyword        string
	MonthlyPC      int
	MonthlyMobile  int
	CompIdx        string  // low / medium / high (Korean labels accepted)
	AvgAdDepth     float64 // average ad slots filled
	AvgCPC         int     // won
	CPCFromAccount bool    // true when the CPC came from account data rather than an estimate
}

// Total returns the combined PC + mobile monthly search count.
func (ks KeywordStats) Total() int {
	return ks.MonthlyPC + ks.MonthlyMobile
}

// Config holds the volume API connection settings.
type Config struct {
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	SecretKey  string `mapstructure:"secret_key"`
	CustomerID string `mapstructure:"customer_id"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// Credentialed reports whether enough credentials are present to call the API
// at all. Without them every resolver built on this client runs in permanent
// fallback mode.
func (c Config) Credentialed() bool {
	return c.Endpoint != "" && c.APIKey != ""
}
