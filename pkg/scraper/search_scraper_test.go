package scraper

import "testing"

const samplePage = `
<html><body>
<a href="https://blog.naver.com/a/1"><b>홍삼스틱</b> 효능 총정리</a>
<a href="https://blog.naver.com/a/1">중복 링크 다른 제목</a>
<a href="https://blog.naver.com/b/2"><span>홍삼스틱 가격 비교</span></a>
<a href="https://blog.naver.com/c/3">짧음</a>
<a href="https://blog.naver.com/d/4"><img src="x.png"></a>
<a href="/relative/path">상대 경로 링크 결과</a>
<a href="https://blog.naver.com/e/5">홍삼스틱 선물 세트 후기</a>
</body></html>`

// TestExtractEntries verifies tag stripping, the short-title floor and URL
// deduplication over a static result page.
func TestExtractEntries(t *testing.T) {
	s := New(DefaultConfig())
	entries := s.extract([]byte(samplePage))

	want := []ResultEntry{
		{Title: "홍삼스틱 효능 총정리", URL: "https://blog.naver.com/a/1"},
		{Title: "홍삼스틱 가격 비교", URL: "https://blog.naver.com/b/2"},
		{Title: "홍삼스틱 선물 세트 후기", URL: "https://blog.naver.com/e/5"},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, e := range entries {
		if e != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestExtractRespectsMaxResults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxResults = 1
	s := New(cfg)

	entries := s.extract([]byte(samplePage))
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Title != "홍삼스틱 효능 총정리" {
		t.Errorf("kept entry = %+v", entries[0])
	}
}

func TestExtractEmptyBody(t *testing.T) {
	s := New(DefaultConfig())
	if entries := s.extract(nil); len(entries) != 0 {
		t.Errorf("empty body produced %d entries", len(entries))
	}
}

func TestRankIn(t *testing.T) {
	entries := []ResultEntry{
		{Title: "홍삼스틱 효능 총정리", URL: "https://blog.naver.com/a/1"},
		{Title: "홍삼스틱 가격 비교", URL: "https://blog.naver.com/b/2"},
		{Title: "홍삼스틱 선물 세트 후기", URL: "https://blog.naver.com/e/5"},
	}

	tests := []struct {
		name    string
		blogURL string
		want    int
	}{
		{"first result", "https://blog.naver.com/a", 1},
		{"later result", "https://blog.naver.com/e", 3},
		{"scheme insensitive", "http://blog.naver.com/b", 2},
		{"bare host path", "blog.naver.com/b/2", 2},
		{"not exposed", "https://blog.naver.com/zzz", 0},
		{"empty blog url", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rankIn(entries, tt.blogURL); got != tt.want {
				t.Errorf("rankIn(%q) = %d, want %d", tt.blogURL, got, tt.want)
			}
		})
	}

	if got := rankIn(nil, "https://blog.naver.com/a"); got != 0 {
		t.Errorf("rankIn over no results = %d, want 0", got)
	}
}
