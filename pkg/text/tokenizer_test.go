package text

import (
	"strings"
	"testing"

	"keywordscout-go/pkg/lexicon"
)

func newTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	return NewTokenizer(lexicon.Default())
}

func tokenTexts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Text
	}
	return out
}

// TestTokenizeFilters verifies the cleanup pipeline: special characters become
// separators, particles are stripped, and short, numeric and stopword tokens
// are dropped.
func TestTokenizeFilters(t *testing.T) {
	tok := newTestTokenizer(t)

	testCases := []struct {
		name     string
		title    string
		expected []string
	}{
		{
			name:     "particle stripped from noun",
			title:    "홍삼은 몸에좋다",
			expected: []string{"홍삼", "몸에좋다"},
		},
		{
			name:     "special characters become separators",
			title:    "홍삼스틱★추천!!",
			expected: []string{"홍삼스틱", "추천"},
		},
		{
			name:     "pure numbers dropped",
			title:    "2024 홍삼스틱 추천",
			expected: []string{"홍삼스틱", "추천"},
		},
		{
			name:     "mixed alphanumeric kept",
			title:    "비타민D 1000IU",
			expected: []string{"비타민d", "1000iu"},
		},
		{
			name:     "stopwords dropped",
			title:    "정말 진짜 홍삼스틱",
			expected: []string{"홍삼스틱"},
		},
		{
			name:     "single rune tokens dropped",
			title:    "a 홍삼",
			expected: []string{"홍삼"},
		},
		{
			name:     "empty title",
			title:    "",
			expected: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tokenTexts(tok.Tokenize(tc.title))
			if len(got) != len(tc.expected) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tc.title, got, tc.expected)
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("Tokenize(%q)[%d] = %q, want %q", tc.title, i, got[i], tc.expected[i])
				}
			}
		})
	}
}

// TestNGramsBannedSingles verifies that a banned single survives inside a
// longer gram but never stands alone as a unigram.
func TestNGramsBannedSingles(t *testing.T) {
	tok := newTestTokenizer(t)

	grams := tok.Grams("강남 맛집", DefaultGramOptions())

	var sawUnigram, sawBigram bool
	for _, g := range grams {
		if g == "맛집" || g == "강남" {
			sawUnigram = true
		}
		if g == "강남 맛집" {
			sawBigram = true
		}
	}

	if sawUnigram {
		t.Errorf("banned single leaked as unigram: %v", grams)
	}
	if !sawBigram {
		t.Errorf("bigram with banned single missing: %v", grams)
	}
}

func TestNGramsLengthBand(t *testing.T) {
	tok := newTestTokenizer(t)

	opts := SelectorGramOptions()
	grams := tok.Grams("프리미엄 홍삼스틱 선물세트 구매가이드", opts)

	for _, g := range grams {
		size := len([]rune(Normalize(g)))
		if size < opts.MinChars || size > opts.MaxChars {
			t.Errorf("gram %q has %d normalized chars, outside [%d, %d]", g, size, opts.MinChars, opts.MaxChars)
		}
	}
}

func TestNGramsOrdering(t *testing.T) {
	tok := newTestTokenizer(t)

	grams := tok.Grams("홍삼스틱 선물 세트", DefaultGramOptions())

	expected := []string{
		"홍삼스틱", "선물", "세트",
		"홍삼스틱 선물", "선물 세트",
		"홍삼스틱 선물 세트",
	}
	if strings.Join(grams, "|") != strings.Join(expected, "|") {
		t.Errorf("Grams = %v, want %v", grams, expected)
	}
}
