package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultLexiconYAML []byte

// Lexicon holds every word table the tokenizer, scorer and seed expander
// depend on. Tables are data, not code: they ship as a versioned YAML document
// and are compiled once into immutable lookup structures at load time.
type Lexicon struct {
	Version string `yaml:"version"`

	Stopwords     []string `yaml:"stopwords"`
	Particles     []string `yaml:"particles"`
	BannedSingles []string `yaml:"banned_singles"`

	// BannedCategories are regex patterns matching ad-ineligible keyword
	// categories (medical, gambling, adult, illegal).
	BannedCategories []string `yaml:"banned_categories"`

	// Seed expansion provider tables.
	ProductForms   []string            `yaml:"product_forms"`
	AgeGroups      []string            `yaml:"age_groups"`
	IntentWords    []string            `yaml:"intent_words"`
	HealthWords    []string            `yaml:"health_words"`
	TemporalEvents []string            `yaml:"temporal_events"`
	LocalPlaces    []string            `yaml:"local_places"`
	EateryPhrases  []string            `yaml:"eatery_phrases"`
	TravelCities   []string            `yaml:"travel_cities"`
	TravelPhrases  []string            `yaml:"travel_phrases"`
	BrandModels    map[string][]string `yaml:"brand_models"`

	stopwordSet     map[string]struct{}
	bannedSingleSet map[string]struct{}
	sortedParticles []string
	bannedPatterns  []*regexp.Regexp
}

// Default returns the built-in lexicon compiled into the binary.
func Default() *Lexicon {
	lex, err := parse(defaultLexiconYAML)
	if err != nil {
		// The embedded document is validated by tests; a parse failure here
		// means a broken build, not a runtime condition.
		panic(fmt.Sprintf("embedded lexicon is invalid: %v", err))
	}
	return lex
}

// Load reads a lexicon from a YAML file. An empty path yields the default.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}

	lex, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}
	return lex, nil
}

func parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, err
	}
	if err := lex.compile(); err != nil {
		return nil, err
	}
	return &lex, nil
}

// compile builds the lookup structures. Called once at load; the lexicon is
// read-only afterwards.
func (l *Lexicon) compile() error {
	l.stopwordSet = make(map[string]struct{}, len(l.Stopwords))
	for _, w := range l.Stopwords {
		l.stopwordSet[strings.ToLower(w)] = struct{}{}
	}

	l.bannedSingleSet = make(map[string]struct{}, len(l.BannedSingles))
	for _, w := range l.BannedSingles {
		l.bannedSingleSet[strings.ToLower(w)] = struct{}{}
	}

	// Longest-first so compound particles (에서, 으로) win over their prefixes.
	l.sortedParticles = append([]string(nil), l.Particles...)
	sort.Slice(l.sortedParticles, func(i, j int) bool {
		return len(l.sortedParticles[i]) > len(l.sortedParticles[j])
	})

	l.bannedPatterns = make([]*regexp.Regexp, 0, len(l.BannedCategories))
	for _, p := range l.BannedCategories {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid banned category pattern %q: %w", p, err)
		}
		l.bannedPatterns = append(l.bannedPatterns, re)
	}

	return nil
}

// IsStopword reports whether the lowercased token is a stopword.
func (l *Lexicon) IsStopword(token string) bool {
	_, ok := l.stopwordSet[strings.ToLower(token)]
	return ok
}

// IsBannedSingle reports whether the token may not stand alone as a keyword.
// Banned singles remain legal inside multi-token grams.
func (l *Lexicon) IsBannedSingle(token string) bool {
	_, ok := l.bannedSingleSet[strings.ToLower(token)]
	return ok
}

// StripParticle removes one trailing grammatical particle from the token when
// the remainder still has at least two characters. Longest particle wins.
func (l *Lexicon) StripParticle(token string) string {
	for _, p := range l.sortedParticles {
		if strings.HasSuffix(token, p) {
			rest := strings.TrimSuffix(token, p)
			if len([]rune(rest)) >= 2 {
				return rest
			}
		}
	}
	return token
}

// MatchesBannedCategory reports whether the keyword text hits one of the
// ad-ineligible category patterns.
func (l *Lexicon) MatchesBannedCategory(text string) bool {
	for _, re := range l.bannedPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ModelsFor returns the model/series tokens for a seed that textually contains
// a known brand name, or nil when no brand matches.
func (l *Lexicon) ModelsFor(seed string) []string {
	low := strings.ToLower(seed)
	for brand, models := range l.BrandModels {
		if strings.Contains(low, strings.ToLower(brand)) {
			return models
		}
	}
	return nil
}
