package candidate

import "keywordscout-go/pkg/lexicon"

// Miner adapts the extractor to the crawler's hop-refill contract: titles in,
// ranked candidate surfaces out.
type Miner struct {
	extractor *Extractor
}

func NewMiner(lex *lexicon.Lexicon) *Miner {
	return &Miner{extractor: NewExtractor(lex)}
}

func (m *Miner) Mine(titles []string) []string {
	ranked := Ranked(m.extractor.Extract(titles))
	out := make([]string, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, c.Surface)
	}
	return out
}
