// Package expand explodes a small seed-keyword set into a large candidate
// frontier using table-driven providers. Output is deterministic for a fixed
// lexicon and seed input, except when the hard cap forces a random sample.
package expand

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"keywordscout-go/pkg/lexicon"
	"keywordscout-go/pkg/logger"
	"keywordscout-go/pkg/text"
)

// MaxFrontier caps the expanded set. When exceeded, a uniform random sample
// of exactly this size is taken: the cap is a space/cost bound, not a
// correctness requirement, so non-determinism here is acceptable.
const MaxFrontier = 50000

// Expander generates candidate keywords from seeds via five providers:
// variants, temporal, local, travel, models.
type Expander struct {
	lex *lexicon.Lexicon
	rng *rand.Rand
	now func() time.Time
	log *logger.Logger
}

func New(lex *lexicon.Lexicon) *Expander {
	return &Expander{
		lex: lex,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
		log: logger.GetLogger().WithField("component", "seed_expander"),
	}
}

// ExpandAll combines the original seeds with every provider's output,
// deduplicates on normalized keys, filters out sub-2-char entries and applies
// the frontier cap.
func (e *Expander) ExpandAll(seeds []string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(kw string) {
		kw = text.CollapseSpaces(kw)
		key := text.Normalize(kw)
		if utf8.RuneCountInString(key) < 2 {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}

	for _, seed := range seeds {
		add(seed)
	}
	for _, seed := range seeds {
		for _, kw := range e.variantTerms(seed) {
			add(kw)
		}
		for _, kw := range e.temporalTerms(seed) {
			add(kw)
		}
		for _, kw := range e.modelTerms(seed) {
			add(kw)
		}
	}
	// Local and travel providers are largely seed-agnostic: their base
	// output seeds the frontier with long-tail location terms regardless of
	// seed content.
	for _, kw := range e.localTerms(seeds) {
		add(kw)
	}
	for _, kw := range e.travelTerms(seeds) {
		add(kw)
	}

	if len(out) > MaxFrontier {
		e.log.WithFields(map[string]interface{}{
			"expanded": len(out),
			"cap":      MaxFrontier,
		}).Warn("expansion exceeded frontier cap, sampling")
		e.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		out = out[:MaxFrontier]
	}

	return out
}

// variantTerms crosses the seed with product-form, age-group, commercial
// intent and health-category words, in both orderings, plus a collapsed
// no-space form and a Hangul/Latin boundary-spaced form of the seed itself.
func (e *Expander) variantTerms(seed string) []string {
	var terms []string

	tables := [][]string{
		e.lex.ProductForms,
		e.lex.AgeGroups,
		e.lex.IntentWords,
		e.lex.HealthWords,
	}
	for _, table := range tables {
		for _, word := range table {
			terms = append(terms,
				seed+" "+word,
				word+" "+seed,
			)
		}
	}

	if collapsed := text.StripSpaces(seed); collapsed != seed {
		terms = append(terms, collapsed)
	}
	if spaced := spaceScriptBoundary(seed); spaced != seed {
		terms = append(terms, spaced)
	}

	return terms
}

// temporalTerms crosses the seed with the current year and named events,
// in three orderings.
func (e *Expander) temporalTerms(seed string) []string {
	year := fmt.Sprintf("%d", e.now().Year())

	var terms []string
	for _, event := range e.lex.TemporalEvents {
		terms = append(terms,
			seed+" "+year+" "+event,
			year+" "+event+" "+seed,
			seed+" "+event+" "+year,
		)
	}
	terms = append(terms, seed+" "+year, year+" "+seed)
	return terms
}

// localTerms emits place x eatery-phrase bigrams unconditionally plus
// seed-combined forms.
func (e *Expander) localTerms(seeds []string) []string {
	var terms []string
	for _, place := range e.lex.LocalPlaces {
		for _, phrase := range e.lex.EateryPhrases {
			terms = append(terms, place+" "+phrase)
		}
		for _, seed := range seeds {
			terms = append(terms, place+" "+seed)
		}
	}
	return terms
}

// travelTerms emits city x travel-phrase combinations plus seed-combined
// forms.
func (e *Expander) travelTerms(seeds []string) []string {
	var terms []string
	for _, city := range e.lex.TravelCities {
		for _, phrase := range e.lex.TravelPhrases {
			terms = append(terms, city+" "+phrase)
		}
		for _, seed := range seeds {
			terms = append(terms, city+" "+seed)
		}
	}
	return terms
}

// modelTerms activates only when the seed matches a known brand, appending
// the brand's model/series tokens in both orderings.
func (e *Expander) modelTerms(seed string) []string {
	models := e.lex.ModelsFor(seed)
	if len(models) == 0 {
		return nil
	}

	var terms []string
	for _, model := range models {
		terms = append(terms,
			seed+" "+model,
			model+" "+seed,
		)
	}
	return terms
}

// spaceScriptBoundary inserts a space where Hangul meets Latin/digits, so
// "홍삼스틱2개입" also yields "홍삼스틱 2개입"-style variants.
func spaceScriptBoundary(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && isHangul(runes[i-1]) != isHangul(r) &&
			!unicode.IsSpace(r) && !unicode.IsSpace(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isHangul(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}
