package selector

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"keywordscout-go/pkg/budget"
	"keywordscout-go/pkg/lexicon"
	"keywordscout-go/pkg/resolver"
	"keywordscout-go/pkg/searchads"
	"keywordscout-go/pkg/store"
)

// scriptedClient answers FetchStats from a fixed volume table; keywords not
// in the table are omitted from the response, mirroring the real API.
type scriptedClient struct {
	volumes map[string]int
	fail    bool
	calls   int
}

func (c *scriptedClient) Enabled() bool { return true }

func (c *scriptedClient) FetchStats(_ context.Context, keywords []string) ([]searchads.KeywordStats, int, error) {
	c.calls++
	if c.fail {
		return nil, 500, errors.New("server error")
	}
	var stats []searchads.KeywordStats
	for _, kw := range keywords {
		total, ok := c.volumes[kw]
		if !ok {
			continue
		}
		stats = append(stats, searchads.KeywordStats{
			Keyword:       kw,
			MonthlyPC:     total / 2,
			MonthlyMobile: total - total/2,
			CompIdx:       "medium",
			AvgAdDepth:    2,
			AvgCPC:        300,
		})
	}
	return stats, 200, nil
}

type selectorFixture struct {
	selector *Selector
	store    *store.Store
	client   *scriptedClient
	gate     *budget.Gate
}

func newFixture(t *testing.T, client *scriptedClient) *selectorFixture {
	t.Helper()

	kwStore, err := store.Open(filepath.Join(t.TempDir(), "keywords.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = kwStore.Close() })

	gate := budget.NewGate(budget.DefaultLimits())
	res := resolver.New(client, kwStore, gate)
	sel := New(DefaultConfig(), lexicon.Default(), kwStore, res, gate)

	return &selectorFixture{selector: sel, store: kwStore, client: client, gate: gate}
}

var sampleTitles = []string{
	"홍삼스틱 효능 총정리",
	"홍삼스틱 먹는법 안내",
	"홍삼스틱 구매 팁",
	"홍삼스틱 선물 세트",
}

// TestSelectDBOnly verifies a store already holding fresh volume data answers
// without any API traffic.
func TestSelectDBOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedClient{volumes: map[string]int{}})

	if _, err := f.store.Upsert(ctx, []store.KeywordRecord{{
		Text:      "홍삼스틱",
		RawVolume: 5400,
		Score:     60,
	}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	sel, err := f.selector.SelectTopN(ctx, sampleTitles, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	if sel.Mode != ModeDBOnly {
		t.Errorf("mode = %s, want db", sel.Mode)
	}
	if len(sel.Items) != 1 || sel.Items[0].Text != "홍삼스틱" {
		t.Fatalf("items = %+v", sel.Items)
	}
	if sel.Items[0].Placeholder {
		t.Error("db hit must not be a placeholder")
	}
	if f.client.calls != 0 {
		t.Errorf("API was called %d times for a db-only selection", f.client.calls)
	}
}

// TestSelectAPIRefresh verifies the second stage fetches unknown candidates,
// persists them with the title-analysis source tag and answers from the
// refreshed store.
func TestSelectAPIRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedClient{volumes: map[string]int{
		"홍삼스틱": 5400,
	}})

	sel, err := f.selector.SelectTopN(ctx, sampleTitles, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	if sel.Mode != ModeAPIRefresh {
		t.Errorf("mode = %s, want api-refresh", sel.Mode)
	}
	if len(sel.Items) != 1 || sel.Items[0].Text != "홍삼스틱" {
		t.Fatalf("items = %+v", sel.Items)
	}
	if sel.Items[0].RawVolume != 5400 {
		t.Errorf("raw volume = %d, want 5400", sel.Items[0].RawVolume)
	}
	if sel.Stats.APIRefreshed == 0 {
		t.Error("stats should count refreshed keywords")
	}

	rec, _ := f.store.FindByText(ctx, "홍삼스틱")
	if rec == nil {
		t.Fatal("refreshed keyword not persisted")
	}
	if rec.Source != store.SourceTitleAnalysis {
		t.Errorf("source = %s, want title-analysis", rec.Source)
	}
}

// TestSelectFrequencyFallback verifies a dead API degrades to frequency-ranked
// placeholders without an error.
func TestSelectFrequencyFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedClient{fail: true})

	sel, err := f.selector.SelectTopN(ctx, sampleTitles, 3)
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}

	if sel.Mode != ModeFrequency {
		t.Errorf("mode = %s, want frequency", sel.Mode)
	}
	if len(sel.Items) == 0 {
		t.Fatal("fallback produced no items")
	}
	for _, item := range sel.Items {
		if !item.Placeholder {
			t.Errorf("fallback item %q not marked placeholder", item.Text)
		}
		if item.RawVolume != 0 || item.Score != 0 {
			t.Errorf("placeholder carries volume data: %+v", item)
		}
	}
	// The dominant candidate leads on frequency.
	if sel.Items[0].Text != "홍삼스틱" {
		t.Errorf("top fallback item = %q, want 홍삼스틱", sel.Items[0].Text)
	}

	// Degraded-mode placeholders must not be persisted: a zero-volume row
	// would read as fresh and block real resolution for a full TTL.
	if rec, err := f.store.FindByText(ctx, "홍삼스틱"); err != nil {
		t.Fatalf("find: %v", err)
	} else if rec != nil {
		t.Errorf("fallback placeholder was persisted: %+v", rec)
	}
}

// TestSelectPartialRealData verifies that when only some candidates have real
// data, those are returned (below n) instead of placeholders.
func TestSelectPartialRealData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedClient{volumes: map[string]int{
		"홍삼스틱": 5400,
	}})

	sel, err := f.selector.SelectTopN(ctx, sampleTitles, 4)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	if sel.Mode == ModeFrequency {
		t.Fatalf("partial real data should not fall back to frequency: %+v", sel)
	}
	if len(sel.Items) == 0 || len(sel.Items) > 4 {
		t.Fatalf("items = %+v", sel.Items)
	}
	for _, item := range sel.Items {
		if item.Placeholder {
			t.Errorf("placeholder leaked into a real-data selection: %+v", item)
		}
	}
}

// TestSelectExcludedRecordsSkipped verifies suppressed keywords never qualify.
func TestSelectExcludedRecordsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedClient{volumes: map[string]int{}})

	if _, err := f.store.Upsert(ctx, []store.KeywordRecord{{
		Text:      "홍삼스틱",
		RawVolume: 5400,
		Score:     60,
	}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	rec, _ := f.store.FindByText(ctx, "홍삼스틱")
	if err := f.store.SetExcluded(ctx, rec.ID, true); err != nil {
		t.Fatalf("exclude: %v", err)
	}

	sel, err := f.selector.SelectTopN(ctx, sampleTitles, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for _, item := range sel.Items {
		if item.Text == "홍삼스틱" && !item.Placeholder {
			t.Errorf("excluded record qualified: %+v", item)
		}
	}
}

// TestSelectSpacingEquivalence verifies spaced titles match a collapsed store
// row through the normalized-variant lookup.
func TestSelectSpacingEquivalence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedClient{volumes: map[string]int{}})

	if _, err := f.store.Upsert(ctx, []store.KeywordRecord{{
		Text:      "홍삼스틱",
		RawVolume: 5400,
		Score:     60,
	}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	spaced := []string{
		"홍삼 스틱 효능",
		"홍삼 스틱 가격 정보",
		"홍삼 스틱 구매처",
	}
	sel, err := f.selector.SelectTopN(ctx, spaced, 1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Mode != ModeDBOnly || len(sel.Items) != 1 {
		t.Fatalf("selection = %+v", sel)
	}
	if sel.Items[0].Text != "홍삼스틱" {
		t.Errorf("matched text = %q, want the stored collapsed form", sel.Items[0].Text)
	}
}

// TestSeedFilteredStrategy verifies the opt-in strategy drops titles without
// the seed keyword.
func TestSeedFilteredStrategy(t *testing.T) {
	ctx := context.Background()

	kwStore, err := store.Open(filepath.Join(t.TempDir(), "keywords.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer kwStore.Close()

	client := &scriptedClient{fail: true}
	gate := budget.NewGate(budget.DefaultLimits())
	cfg := DefaultConfig()
	cfg.Strategy = StrategySeedFiltered
	cfg.SeedKeyword = "홍삼스틱"
	sel := New(cfg, lexicon.Default(), kwStore, resolver.New(client, kwStore, gate), gate)

	titles := append([]string{"비타민 후기 모음"}, sampleTitles...)
	selection, err := sel.SelectTopN(ctx, titles, 3)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	for _, item := range selection.Items {
		if strings.Contains(item.Text, "비타민") {
			t.Errorf("off-seed title leaked into candidates: %+v", item)
		}
	}
}

func TestRankItemsTieBreaks(t *testing.T) {
	items := []Item{
		{Text: "다", CombinedScore: 50, RawVolume: 100, Frequency: 1},
		{Text: "가", CombinedScore: 50, RawVolume: 100, Frequency: 1},
		{Text: "나", CombinedScore: 50, RawVolume: 200, Frequency: 1},
		{Text: "라", CombinedScore: 80, RawVolume: 10, Frequency: 1},
		{Text: "마", CombinedScore: 50, RawVolume: 100, Frequency: 9},
	}

	out := rankItems(items)

	want := []string{"라", "나", "마", "가", "다"}
	for i, item := range out {
		if item.Text != want[i] {
			t.Fatalf("rank order = %v, want %v", textsOf(out), want)
		}
	}
}

func TestCombinedClampsContent(t *testing.T) {
	s := &Selector{cfg: DefaultConfig()}

	// 20 occurrences saturate the content signal at 100.
	if got, want := s.combined(0, 20), 30; got != want {
		t.Errorf("combined(0, 20) = %d, want %d", got, want)
	}
	if got, want := s.combined(100, 0), 70; got != want {
		t.Errorf("combined(100, 0) = %d, want %d", got, want)
	}
}

// TestSelectWithCombinations verifies a validated combination takes the slot
// and is persisted with the auto-combination source.
func TestSelectWithCombinations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedClient{volumes: map[string]int{
		"홍삼스틱":      5400,
		"선물세트":      900,
		"홍삼스틱 선물세트": 300,
	}})

	titles := []string{
		"홍삼스틱 추천 목록",
		"홍삼스틱 효능 안내",
		"선물세트 구성 안내",
		"선물세트 가격 비교",
	}

	sel, err := f.selector.SelectWithCombinations(ctx, titles, 2)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(sel.Items) != 2 {
		t.Fatalf("items = %+v", sel.Items)
	}
	if sel.Items[0].Combined {
		t.Error("the best keyword stays standalone")
	}

	sawCombination := false
	for _, item := range sel.Items[1:] {
		if item.Combined {
			sawCombination = true
			if item.RawVolume != 300 {
				t.Errorf("combination volume = %d, want 300", item.RawVolume)
			}
		}
	}
	if sawCombination {
		rec, _ := f.store.FindByText(ctx, "홍삼스틱 선물세트")
		if rec == nil || rec.Source != store.SourceAutoCombination {
			t.Errorf("combination not persisted with auto-combination source: %+v", rec)
		}
	} else {
		t.Error("no combination validated despite API data")
	}
}

func textsOf(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Text
	}
	return out
}
