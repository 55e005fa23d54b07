package candidate

import (
	"sort"

	"keywordscout-go/pkg/lexicon"
	"keywordscout-go/pkg/text"
)

// MaxCandidates bounds the candidate set per extraction. The cap exists to
// bound external API call volume downstream, not for correctness.
const MaxCandidates = 50

// Candidate is one deduplicated keyword candidate mined from a title batch.
type Candidate struct {
	// Surface is the representative display form for the normalized key:
	// the highest-frequency variant, first-seen winning ties.
	Surface string
	// Frequency is weighted by gram length: a trigram occurrence counts 3.
	Frequency int

	firstSeen int
	surfaces  map[string]int
}

// Extractor mines deduplicated keyword candidates from batches of titles.
type Extractor struct {
	tokenizer *text.Tokenizer
	opts      text.GramOptions
	cap       int
}

func NewExtractor(lex *lexicon.Lexicon) *Extractor {
	return &Extractor{
		tokenizer: text.NewTokenizer(lex),
		opts:      text.SelectorGramOptions(),
		cap:       MaxCandidates,
	}
}

// NewExtractorWithOptions allows custom gram options and cap. A cap <= 0
// disables the limit.
func NewExtractorWithOptions(lex *lexicon.Lexicon, opts text.GramOptions, cap int) *Extractor {
	return &Extractor{tokenizer: text.NewTokenizer(lex), opts: opts, cap: cap}
}

// Extract builds the candidate map keyed by normalized form. Deterministic
// given identical title order.
func (e *Extractor) Extract(titles []string) map[string]*Candidate {
	candidates := make(map[string]*Candidate)
	order := 0

	for _, title := range titles {
		for _, gram := range e.tokenizer.Grams(title, e.opts) {
			key := text.Normalize(gram)
			if key == "" {
				continue
			}

			weight := gramWeight(gram)

			c, ok := candidates[key]
			if !ok {
				c = &Candidate{
					Surface:   gram,
					firstSeen: order,
					surfaces:  map[string]int{gram: 0},
				}
				candidates[key] = c
				order++
			}

			c.Frequency += weight
			c.surfaces[gram] += weight

			// Re-elect the representative surface: highest surface frequency
			// wins, the incumbent keeps the slot on ties (first-seen rule).
			if c.surfaces[gram] > c.surfaces[c.Surface] {
				c.Surface = gram
			}
		}
	}

	if e.cap > 0 && len(candidates) > e.cap {
		candidates = capByFrequency(candidates, e.cap)
	}
	return candidates
}

// Ranked returns candidates sorted by frequency descending, first-seen order
// breaking ties. This is the deterministic ordering downstream ranking relies
// on.
func Ranked(candidates map[string]*Candidate) []*Candidate {
	ranked := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Frequency != ranked[j].Frequency {
			return ranked[i].Frequency > ranked[j].Frequency
		}
		return ranked[i].firstSeen < ranked[j].firstSeen
	})
	return ranked
}

func capByFrequency(candidates map[string]*Candidate, limit int) map[string]*Candidate {
	ranked := Ranked(candidates)[:limit]

	kept := make(map[string]*Candidate, limit)
	for _, c := range ranked {
		kept[text.Normalize(c.Surface)] = c
	}
	return kept
}

// gramWeight counts the tokens in a space-joined gram.
func gramWeight(gram string) int {
	weight := 1
	for _, r := range gram {
		if r == ' ' {
			weight++
		}
	}
	return weight
}
