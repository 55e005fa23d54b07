// Package scraper fetches mobile search result pages and extracts title/URL
// entries. It is a collaborator at the core's boundary: failures of any kind
// produce an empty result list, never an error into the pipeline.
package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"keywordscout-go/pkg/logger"
)

// ResultEntry is one search result row.
type ResultEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Config holds the search endpoint settings.
type Config struct {
	Endpoint   string `mapstructure:"endpoint"`
	UserAgent  string `mapstructure:"user_agent"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	MaxResults int    `mapstructure:"max_results"`
}

// DefaultConfig targets the mobile search page with a mobile user agent.
func DefaultConfig() Config {
	return Config{
		Endpoint:   "https://m.search.naver.com/search.naver",
		UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		TimeoutSec: 10,
		MaxResults: 30,
	}
}

var (
	// Anchor tags with both href and some inner text. Good enough for title
	// mining; this is not a DOM parser and does not need to be.
	anchorPattern = regexp.MustCompile(`(?is)<a[^>]+href="(https?://[^"]+)"[^>]*>(.*?)</a>`)
	tagStripper   = regexp.MustCompile(`(?s)<[^>]*>`)
)

// SearchScraper fetches result pages over fasthttp.
type SearchScraper struct {
	cfg     Config
	client  *fasthttp.Client
	timeout time.Duration
	log     *logger.Logger
}

func New(cfg Config) *SearchScraper {
	if cfg.Endpoint == "" {
		cfg = DefaultConfig()
	}
	timeout := 10 * time.Second
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 30
	}

	return &SearchScraper{
		cfg: cfg,
		client: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: timeout,
		log:     logger.GetLogger().WithField("component", "search_scraper"),
	}
}

// Search returns the ordered result entries for a keyword, or an empty slice
// on any failure.
func (s *SearchScraper) Search(ctx context.Context, keyword string) []ResultEntry {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	body, ok := s.fetch(keyword)
	if !ok {
		return nil
	}
	return s.extract(body)
}

// Titles adapts Search for the crawler's hop-refill collaborator contract.
func (s *SearchScraper) Titles(ctx context.Context, keyword string) []string {
	entries := s.Search(ctx, keyword)
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}
	return titles
}

// RankOf returns the 1-based position of the first result whose URL contains
// blogURL, or 0 when the blog is not exposed for the keyword.
func (s *SearchScraper) RankOf(ctx context.Context, keyword, blogURL string) int {
	return rankIn(s.Search(ctx, keyword), blogURL)
}

// rankIn matches blogURL against result URLs scheme-insensitively.
func rankIn(entries []ResultEntry, blogURL string) int {
	needle := strings.TrimPrefix(strings.TrimPrefix(blogURL, "https://"), "http://")
	if needle == "" {
		return 0
	}
	for i, entry := range entries {
		if strings.Contains(entry.URL, needle) {
			return i + 1
		}
	}
	return 0
}

func (s *SearchScraper) fetch(keyword string) ([]byte, bool) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.cfg.Endpoint + "?query=" + url.QueryEscape(keyword))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")

	if err := s.client.DoTimeout(req, resp, s.timeout); err != nil {
		s.log.WithError(err).WithField("keyword", keyword).Debug("search fetch failed")
		return nil, false
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		s.log.WithFields(map[string]interface{}{
			"keyword": keyword,
			"status":  resp.StatusCode(),
		}).Debug("search fetch returned non-OK status")
		return nil, false
	}

	// Copy: the response buffer is reused after release.
	body := append([]byte(nil), resp.Body()...)
	return body, true
}

func (s *SearchScraper) extract(body []byte) []ResultEntry {
	matches := anchorPattern.FindAllSubmatch(body, -1)

	seen := make(map[string]struct{})
	var entries []ResultEntry
	for _, m := range matches {
		if len(entries) >= s.cfg.MaxResults {
			break
		}

		link := string(m[1])
		title := strings.TrimSpace(tagStripper.ReplaceAllString(string(m[2]), ""))
		if title == "" || len([]rune(title)) < 4 {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		entries = append(entries, ResultEntry{Title: title, URL: link})
	}
	return entries
}
