package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/searchads"
	"keywordscout-go/pkg/store"
)

// stubClient scripts FetchStats behavior per call.
type stubClient struct {
	enabled bool
	calls   int
	fetch   func(call int, keywords []string) ([]searchads.KeywordStats, int, error)
}

func (c *stubClient) Enabled() bool { return c.enabled }

func (c *stubClient) FetchStats(_ context.Context, keywords []string) ([]searchads.KeywordStats, int, error) {
	c.calls++
	return c.fetch(c.calls, keywords)
}

func echoStats(keywords []string) []searchads.KeywordStats {
	stats := make([]searchads.KeywordStats, len(keywords))
	for i, kw := range keywords {
		stats[i] = searchads.KeywordStats{
			Keyword:       kw,
			MonthlyPC:     1000,
			MonthlyMobile: 2000,
			CompIdx:       "high",
			AvgAdDepth:    3,
			AvgCPC:        700,
		}
	}
	return stats
}

func TestResolveSearchAdsMode(t *testing.T) {
	client := &stubClient{
		enabled: true,
		fetch: func(_ int, kws []string) ([]searchads.KeywordStats, int, error) {
			return echoStats(kws), 200, nil
		},
	}
	r := New(client, nil, nil)

	result, err := r.Resolve(context.Background(), []string{"홍삼스틱", "비타민d"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Mode != ModeSearchAds {
		t.Errorf("mode = %s, want searchads", result.Mode)
	}

	vol, ok := result.Volumes["홍삼스틱"]
	if !ok {
		t.Fatalf("volume missing, keys: %v", result.Volumes)
	}
	if vol.Total != 3000 || !vol.FromAPI || vol.CompIdx != store.CompHigh {
		t.Errorf("unexpected volume: %+v", vol)
	}
}

// TestResolvePartialMode verifies a mixed run is classified partial and every
// unanswered keyword still gets a placeholder.
func TestResolvePartialMode(t *testing.T) {
	client := &stubClient{
		enabled: true,
		fetch: func(call int, kws []string) ([]searchads.KeywordStats, int, error) {
			if call == 1 {
				return echoStats(kws), 200, nil
			}
			return nil, 500, errors.New("server error")
		},
	}
	r := New(client, nil, nil)

	// 7 keywords = 2 chunks of at most 5; the second fails.
	keywords := []string{"하나둘", "둘셋", "셋넷", "넷다섯", "다섯여섯", "여섯일곱", "일곱여덟"}
	result, err := r.Resolve(context.Background(), keywords)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if result.Mode != ModePartial {
		t.Errorf("mode = %s, want partial", result.Mode)
	}
	if len(result.Volumes) != len(keywords) {
		t.Errorf("%d volumes, want %d (placeholders for the failed chunk)", len(result.Volumes), len(keywords))
	}

	failed := result.Volumes["여섯일곱"]
	if failed.FromAPI || failed.Total != 0 {
		t.Errorf("failed-chunk keyword should be a zero placeholder: %+v", failed)
	}
	if result.Stats.ChunksOK != 1 || result.Stats.ChunksFailed != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestResolveFallbackMode(t *testing.T) {
	client := &stubClient{
		enabled: true,
		fetch: func(_ int, _ []string) ([]searchads.KeywordStats, int, error) {
			return nil, 0, errors.New("connection refused")
		},
	}
	r := New(client, nil, nil)

	result, err := r.Resolve(context.Background(), []string{"홍삼스틱"})
	if err != nil {
		t.Fatalf("resolve should not propagate API failure: %v", err)
	}
	if result.Mode != ModeFallback {
		t.Errorf("mode = %s, want fallback", result.Mode)
	}
	if vol := result.Volumes["홍삼스틱"]; vol.FromAPI || vol.CompIdx != store.CompMedium {
		t.Errorf("placeholder wrong: %+v", vol)
	}
}

func TestResolveDisabledClient(t *testing.T) {
	r := New(&stubClient{enabled: false}, nil, nil)

	result, err := r.Resolve(context.Background(), []string{"홍삼스틱"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Mode != ModeFallback {
		t.Errorf("mode = %s, want fallback for a disabled client", result.Mode)
	}
}

func TestResolveDedupes(t *testing.T) {
	client := &stubClient{
		enabled: true,
		fetch: func(_ int, kws []string) ([]searchads.KeywordStats, int, error) {
			if len(kws) != 1 {
				t.Errorf("duplicates reached the API: %v", kws)
			}
			return echoStats(kws), 200, nil
		},
	}
	r := New(client, nil, nil)

	result, err := r.Resolve(context.Background(), []string{"홍삼 스틱", "홍삼스틱", "홍삼-스틱", "a"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(result.Volumes) != 1 {
		t.Errorf("%d volumes, want 1", len(result.Volumes))
	}
}

func TestResolveGatedCharges(t *testing.T) {
	client := &stubClient{
		enabled: true,
		fetch: func(_ int, kws []string) ([]searchads.KeywordStats, int, error) {
			return echoStats(kws), 200, nil
		},
	}
	gate := budget.NewGate(budget.Limits{PerMinute: 2, PerDay: 100})
	r := New(client, nil, gate)

	// 7 keywords = 2 chunks = 2 budget units.
	keywords := []string{"하나둘", "둘셋", "셋넷", "넷다섯", "다섯여섯", "여섯일곱", "일곱여덟"}
	if _, err := r.ResolveGated(context.Background(), keywords); err != nil {
		t.Fatalf("gated resolve: %v", err)
	}

	status := gate.GetStatus()
	if status.PerMinuteRemaining != 0 {
		t.Errorf("PerMinuteRemaining = %d, want 0 after two chunks", status.PerMinuteRemaining)
	}

	// Budget gone: the next call is denied before touching the API.
	callsBefore := client.calls
	_, err := r.ResolveGated(context.Background(), []string{"추가키워드"})
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("err = %v, want ErrBudgetExhausted", err)
	}
	if client.calls != callsBefore {
		t.Error("denied resolve still reached the API")
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := New(&stubClient{
		enabled: true,
		fetch: func(_ int, kws []string) ([]searchads.KeywordStats, int, error) {
			return echoStats(kws), 200, nil
		},
	}, nil, nil)
	if mode, ok := healthy.HealthCheck(context.Background()); !ok || mode != ModeSearchAds {
		t.Errorf("healthy check = %s/%v", mode, ok)
	}

	down := New(&stubClient{enabled: false}, nil, nil)
	if mode, ok := down.HealthCheck(context.Background()); ok || mode != ModeFallback {
		t.Errorf("down check = %s/%v", mode, ok)
	}
}

func newResolverStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "keywords.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestResolveWithStoreFresh verifies records younger than the TTL are served
// without any API traffic.
func TestResolveWithStoreFresh(t *testing.T) {
	ctx := context.Background()
	kwStore := newResolverStore(t)

	cpc := 500
	if _, err := kwStore.Upsert(ctx, []store.KeywordRecord{{
		Text:      "홍삼스틱",
		RawVolume: 5400,
		CompIdx:   store.CompMedium,
		CompScore: 60,
		AdDepth:   3,
		EstCPCKrw: &cpc,
	}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	client := &stubClient{
		enabled: true,
		fetch: func(_ int, kws []string) ([]searchads.KeywordStats, int, error) {
			t.Errorf("fresh record should not hit the API, asked for %v", kws)
			return nil, 0, errors.New("unexpected")
		},
	}
	r := New(client, kwStore, budget.NewGate(budget.DefaultLimits()))

	result, err := r.ResolveWithStore(ctx, []string{"홍삼스틱"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Stats.FromStore != 1 {
		t.Errorf("FromStore = %d, want 1", result.Stats.FromStore)
	}
	vol := result.Volumes["홍삼스틱"]
	if vol.Total != 5400 || !vol.FromAPI || vol.CPC != 500 {
		t.Errorf("stored volume wrong: %+v", vol)
	}
}

// TestResolveWithStoreStale verifies stale records are re-fetched and the
// fresh data is written back with the auto-enrich source tag.
func TestResolveWithStoreStale(t *testing.T) {
	ctx := context.Background()
	kwStore := newResolverStore(t)

	if _, err := kwStore.Upsert(ctx, []store.KeywordRecord{{
		Text:      "홍삼스틱",
		RawVolume: 100,
	}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	client := &stubClient{
		enabled: true,
		fetch: func(_ int, kws []string) ([]searchads.KeywordStats, int, error) {
			return echoStats(kws), 200, nil
		},
	}
	r := New(client, kwStore, budget.NewGate(budget.DefaultLimits()))
	// Everything in the store is now past the TTL.
	r.now = func() time.Time { return time.Now().Add(TTL + time.Hour) }

	result, err := r.ResolveWithStore(ctx, []string{"홍삼스틱"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if client.calls == 0 {
		t.Fatal("stale record never reached the API")
	}
	if vol := result.Volumes["홍삼스틱"]; vol.Total != 3000 {
		t.Errorf("refreshed volume = %d, want 3000", vol.Total)
	}

	rec, err := kwStore.FindByText(ctx, "홍삼스틱")
	if err != nil || rec == nil {
		t.Fatalf("write-back missing: %v", err)
	}
	if rec.RawVolume != 3000 || rec.Source != store.SourceAutoEnrich {
		t.Errorf("write-back wrong: volume=%d source=%s", rec.RawVolume, rec.Source)
	}
	if rec.Score == 0 {
		t.Error("write-back should carry a computed score")
	}
}

// TestResolveWithStoreBudgetDenied verifies a budget denial downgrades to
// partial mode with placeholders instead of failing.
func TestResolveWithStoreBudgetDenied(t *testing.T) {
	ctx := context.Background()
	kwStore := newResolverStore(t)

	client := &stubClient{
		enabled: true,
		fetch: func(_ int, kws []string) ([]searchads.KeywordStats, int, error) {
			t.Error("denied resolve should not reach the API")
			return nil, 0, errors.New("unexpected")
		},
	}
	r := New(client, kwStore, budget.NewGate(budget.Limits{PerMinute: 0, PerDay: 0}))

	result, err := r.ResolveWithStore(ctx, []string{"홍삼스틱"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Mode != ModePartial {
		t.Errorf("mode = %s, want partial on budget denial", result.Mode)
	}
	if result.Stats.BudgetDenials != 1 {
		t.Errorf("BudgetDenials = %d, want 1", result.Stats.BudgetDenials)
	}
	if vol, ok := result.Volumes["홍삼스틱"]; !ok || vol.FromAPI {
		t.Errorf("expected a placeholder volume, got %+v", vol)
	}
}
