package searchads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"keywordscout-go/pkg/logger"
)

// Client is the volume API boundary. FetchStats returns the per-keyword stats
// and the HTTP status of the final attempt; a zero status means the request
// never reached the server (network error or timeout).
type Client interface {
	FetchStats(ctx context.Context, keywords []string) ([]KeywordStats, int, error)
	Enabled() bool
}

type httpClient struct {
	config  Config
	client  *fasthttp.Client
	retry   *simpleRetry
	timeout time.Duration
	log     *logger.Logger

	totalRequests  uint64
	failedRequests uint64
}

// NewClient builds the fasthttp volume API client. A client without
// credentials is constructed in disabled state rather than failing: the
// resolver degrades to fallback mode instead of crashing.
func NewClient(config Config) Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	timeout := 12 * time.Second
	if config.TimeoutSec > 0 {
		timeout = time.Duration(config.TimeoutSec) * time.Second
	}
	retries := config.MaxRetries
	if retries <= 0 {
		retries = 2
	}

	return &httpClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
		retry:   newSimpleRetry(retries, 500*time.Millisecond),
		timeout: timeout,
		log:     logger.GetLogger().WithField("component", "searchads_client"),
	}
}

func (c *httpClient) Enabled() bool {
	return c.config.Credentialed()
}

func (c *httpClient) FetchStats(ctx context.Context, keywords []string) ([]KeywordStats, int, error) {
	if !c.Enabled() {
		return nil, 0, fmt.Errorf("searchads credentials not configured")
	}
	if len(keywords) == 0 {
		return nil, 0, fmt.Errorf("no keywords provided")
	}
	if len(keywords) > MaxKeywordsPerRequest {
		return nil, 0, fmt.Errorf("too many keywords in one request: %d > %d", len(keywords), MaxKeywordsPerRequest)
	}

	atomic.AddUint64(&c.totalRequests, 1)
	start := time.Now()

	var stats []KeywordStats
	var statusCode int

	err := c.retry.Execute(ctx, func() error {
		s, code, err := c.doFetch(keywords)
		statusCode = code
		if err != nil {
			return err
		}
		stats = s
		return nil
	})

	if err != nil {
		atomic.AddUint64(&c.failedRequests, 1)
		c.log.WithError(err).WithFields(map[string]interface{}{
			"keywords_count": len(keywords),
			"status":         statusCode,
		}).Debug("volume API request failed")
		return nil, statusCode, err
	}

	c.log.WithFields(map[string]interface{}{
		"keywords_count": len(keywords),
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Debug("volume API request completed")
	return stats, statusCode, nil
}

func (c *httpClient) doFetch(keywords []string) ([]KeywordStats, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	// Batch query: hintKeywords=word1,word2,...
	keywordParam := strings.Join(keywords, ",")
	fullURL := c.config.Endpoint
	if strings.Contains(fullURL, "?") {
		fullURL += "&hintKeywords=" + url.QueryEscape(keywordParam)
	} else {
		fullURL += "?hintKeywords=" + url.QueryEscape(keywordParam)
	}
	req.SetRequestURI(fullURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", "keywordscout-go/1.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if c.config.CustomerID != "" {
		req.Header.Set("X-Customer", c.config.CustomerID)
	}
	if c.config.SecretKey != "" {
		req.Header.Set("X-Signature", c.config.SecretKey)
	}

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	code := resp.StatusCode()
	if code != fasthttp.StatusOK {
		return nil, code, fmt.Errorf("volume API returned status %d: %s", code, truncate(string(resp.Body()), 200))
	}

	stats, err := parseResponse(resp.Body())
	if err != nil {
		return nil, code, err
	}
	return stats, code, nil
}

// parseResponse decodes the volume API body. A malformed body is treated the
// same as a failed chunk by callers.
func parseResponse(body []byte) ([]KeywordStats, error) {
	var payload struct {
		KeywordList []struct {
			RelKeyword    string  `json:"relKeyword"`
			MonthlyPcQc   flexInt `json:"monthlyPcQcCnt"`
			MonthlyMobQc  flexInt `json:"monthlyMobileQcCnt"`
			CompIdx       string  `json:"compIdx"`
			PlAvgDepth    float64 `json:"plAvgDepth"`
			AvgCpc        int     `json:"avgCpc"`
			CpcFromAccout bool    `json:"cpcFromAccount"`
		} `json:"keywordList"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	stats := make([]KeywordStats, 0, len(payload.KeywordList))
	for _, item := range payload.KeywordList {
		stats = append(stats, KeywordStats{
			Keyword:        item.RelKeyword,
			MonthlyPC:      int(item.MonthlyPcQc),
			MonthlyMobile:  int(item.MonthlyMobQc),
			CompIdx:        item.CompIdx,
			AvgAdDepth:     item.PlAvgDepth,
			AvgCPC:         item.AvgCpc,
			CPCFromAccount: item.CpcFromAccout,
		})
	}
	return stats, nil
}

// flexInt tolerates the API's habit of sending "< 10" style strings for
// low-volume keywords; anything unparseable counts as zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			*f = flexInt(v)
			return nil
		}
		if v, err := n.Float64(); err == nil {
			*f = flexInt(int(v))
			return nil
		}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = 0
		return nil
	}
	*f = 0
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
