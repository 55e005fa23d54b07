package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"keywordscout-go/pkg/lexicon"
)

var (
	// Everything that is not Hangul, Latin or a digit becomes a separator.
	nonWordChars = regexp.MustCompile(`[^0-9a-zA-Z가-힣\s]+`)
	pureNumeric  = regexp.MustCompile(`^[0-9]+$`)
)

// Token is a cleaned title token. BannedSingle tokens survive tokenization so
// they can participate in multi-token grams, but are suppressed as unigrams.
type Token struct {
	Text         string
	BannedSingle bool
}

// GramOptions bounds n-gram generation.
type GramOptions struct {
	MinLen int // minimum gram length in tokens
	MaxLen int // maximum gram length in tokens

	// When > 0, grams whose normalized form falls outside
	// [MinChars, MaxChars] are dropped. Used by title-keyword selection to
	// exclude degenerate phrases.
	MinChars int
	MaxChars int
}

// DefaultGramOptions generates 1- to 3-grams without a character band.
func DefaultGramOptions() GramOptions {
	return GramOptions{MinLen: 1, MaxLen: 3}
}

// SelectorGramOptions adds the 2-12 normalized-character band used when
// mining keywords from analyzed post titles.
func SelectorGramOptions() GramOptions {
	return GramOptions{MinLen: 1, MaxLen: 3, MinChars: 2, MaxChars: 12}
}

// Tokenizer turns raw titles into filtered token sequences using lexicon
// tables. It is stateless apart from the immutable lexicon.
type Tokenizer struct {
	lex *lexicon.Lexicon
}

func NewTokenizer(lex *lexicon.Lexicon) *Tokenizer {
	return &Tokenizer{lex: lex}
}

// Tokenize cleans a title and returns qualifying tokens in order. A title
// with no qualifying tokens returns an empty slice, not an error.
func (t *Tokenizer) Tokenize(title string) []Token {
	cleaned := nonWordChars.ReplaceAllString(title, " ")

	fields := strings.Fields(cleaned)
	tokens := make([]Token, 0, len(fields))
	for _, f := range fields {
		tok := strings.ToLower(t.lex.StripParticle(f))

		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		if pureNumeric.MatchString(tok) {
			continue
		}
		if t.lex.IsStopword(tok) {
			continue
		}

		tokens = append(tokens, Token{
			Text:         tok,
			BannedSingle: t.lex.IsBannedSingle(tok),
		})
	}
	return tokens
}

// NGrams generates space-joined n-grams from a token sequence. Unigrams made
// of a banned-single token are skipped; the same token inside a longer gram
// is kept (place name + category word bigrams are meaningful on their own).
func (t *Tokenizer) NGrams(tokens []Token, opts GramOptions) []string {
	if opts.MinLen < 1 {
		opts.MinLen = 1
	}
	if opts.MaxLen < opts.MinLen {
		opts.MaxLen = opts.MinLen
	}

	var grams []string
	for n := opts.MinLen; n <= opts.MaxLen; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			if n == 1 && tokens[i].BannedSingle {
				continue
			}

			parts := make([]string, n)
			for j := 0; j < n; j++ {
				parts[j] = tokens[i+j].Text
			}
			gram := strings.Join(parts, " ")

			if opts.MinChars > 0 || opts.MaxChars > 0 {
				size := utf8.RuneCountInString(Normalize(gram))
				if opts.MinChars > 0 && size < opts.MinChars {
					continue
				}
				if opts.MaxChars > 0 && size > opts.MaxChars {
					continue
				}
			}

			grams = append(grams, gram)
		}
	}
	return grams
}

// Grams is a convenience wrapper: tokenize then generate n-grams.
func (t *Tokenizer) Grams(title string, opts GramOptions) []string {
	return t.NGrams(t.Tokenize(title), opts)
}
