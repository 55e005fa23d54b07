package score

import (
	"math"
	"sort"

	"keywordscout-go/pkg/lexicon"
)

// TierKeyword is one scored keyword entering tier assignment.
type TierKeyword struct {
	Text          string
	CombinedScore int
	Tier          int
}

// AssignTiers sorts keywords by combined score descending and splits them into
// four quality tiers by population percentile: top 10%, next 20%, next 30%,
// remainder. The classification is relative to the batch, so it adapts to
// batch size; tier numbers are non-decreasing as score decreases.
func AssignTiers(keywords []TierKeyword) []TierKeyword {
	out := append([]TierKeyword(nil), keywords...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})

	n := len(out)
	t1 := int(math.Ceil(float64(n) * 0.10))
	t2 := int(math.Ceil(float64(n) * 0.30))
	t3 := int(math.Ceil(float64(n) * 0.60))

	for i := range out {
		switch {
		case i < t1:
			out[i].Tier = 1
		case i < t2:
			out[i].Tier = 2
		case i < t3:
			out[i].Tier = 3
		default:
			out[i].Tier = 4
		}
	}
	return out
}

// EligibilityInput carries the fields the ad-eligibility filter reads.
type EligibilityInput struct {
	Text      string
	RawVolume int
	CompScore int
	AdDepth   int
	Excluded  bool
}

// MinEligibleVolume is the floor below which a keyword is considered
// ad-ineligible.
const MinEligibleVolume = 100

// Eligible reports whether a keyword may enter scoring/selection. Ineligible
// keywords stay in storage; this filter runs before tiering, never before
// persistence.
func Eligible(in EligibilityInput, lex *lexicon.Lexicon) bool {
	if in.Excluded {
		return false
	}
	if in.CompScore == 0 || in.AdDepth == 0 {
		return false
	}
	if in.RawVolume < MinEligibleVolume {
		return false
	}
	if lex != nil && lex.MatchesBannedCategory(in.Text) {
		return false
	}
	return true
}
