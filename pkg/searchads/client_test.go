package searchads

import (
	"encoding/json"
	"testing"
)

// TestParseResponse verifies the keywordList payload decodes into stats,
// including the "< 10" strings the API sends for low-volume keywords.
func TestParseResponse(t *testing.T) {
	body := []byte(`{
		"keywordList": [
			{
				"relKeyword": "홍삼스틱",
				"monthlyPcQcCnt": 1200,
				"monthlyMobileQcCnt": 8400,
				"compIdx": "높음",
				"plAvgDepth": 3.4,
				"avgCpc": 850,
				"cpcFromAccount": true
			},
			{
				"relKeyword": "홍삼스틱 가격",
				"monthlyPcQcCnt": "< 10",
				"monthlyMobileQcCnt": 40,
				"compIdx": "낮음",
				"plAvgDepth": 0,
				"avgCpc": 0
			}
		]
	}`)

	stats, err := parseResponse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}

	first := stats[0]
	if first.Keyword != "홍삼스틱" {
		t.Errorf("keyword = %q", first.Keyword)
	}
	if first.MonthlyPC != 1200 || first.MonthlyMobile != 8400 {
		t.Errorf("volumes = %d/%d, want 1200/8400", first.MonthlyPC, first.MonthlyMobile)
	}
	if first.Total() != 9600 {
		t.Errorf("total = %d, want 9600", first.Total())
	}
	if first.AvgAdDepth != 3.4 || first.AvgCPC != 850 || !first.CPCFromAccount {
		t.Errorf("ad fields = %+v", first)
	}

	second := stats[1]
	if second.MonthlyPC != 0 {
		t.Errorf("low-volume PC count = %d, want 0", second.MonthlyPC)
	}
	if second.Total() != 40 {
		t.Errorf("total = %d, want 40", second.Total())
	}
}

func TestParseResponseEmptyList(t *testing.T) {
	stats, err := parseResponse([]byte(`{"keywordList": []}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("got %d stats from an empty list", len(stats))
	}
}

func TestParseResponseMalformed(t *testing.T) {
	if _, err := parseResponse([]byte(`not json`)); err == nil {
		t.Error("malformed body must fail")
	}
}

// TestFlexInt exercises the tolerant count decoder directly.
func TestFlexInt(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`150`, 150},
		{`99.0`, 99},
		{`"< 10"`, 0},
		{`"-"`, 0},
		{`0`, 0},
	}
	for _, tt := range tests {
		var f flexInt
		if err := json.Unmarshal([]byte(tt.raw), &f); err != nil {
			t.Errorf("unmarshal %s: %v", tt.raw, err)
			continue
		}
		if int(f) != tt.want {
			t.Errorf("flexInt(%s) = %d, want %d", tt.raw, int(f), tt.want)
		}
	}
}

// TestCredentialed verifies the enabled/disabled split NewClient builds on.
func TestCredentialed(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"full", Config{Endpoint: DefaultEndpoint, APIKey: "k"}, true},
		{"no key", Config{Endpoint: DefaultEndpoint}, false},
		{"empty", Config{}, false},
	}
	for _, tt := range tests {
		if got := tt.cfg.Credentialed(); got != tt.want {
			t.Errorf("%s: Credentialed() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestNewClientDefaultEndpoint verifies a key-only config comes up enabled
// against the production endpoint.
func TestNewClientDefaultEndpoint(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	if !c.Enabled() {
		t.Error("client with an API key and no endpoint should default to enabled")
	}

	if NewClient(Config{}).Enabled() {
		t.Error("client without credentials must be disabled")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abcd..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
