package selector

import (
	"context"

	"keywordscout-go/pkg/store"
	"keywordscout-go/pkg/text"
)

// SelectWithCombinations runs SelectTopN and then tries to upgrade slots by
// combining the single best keyword with the next-best unused candidates.
// Each combination (both orderings, spaced and collapsed) must validate
// against the store or resolver before it takes a slot; a candidate with no
// valid combination is kept standalone, so the output always has up to
// maxKeywords entries.
func (s *Selector) SelectWithCombinations(ctx context.Context, titles []string, maxKeywords int) (Selection, error) {
	if maxKeywords <= 0 {
		maxKeywords = s.cfg.TopN
	}

	// Over-fetch so there are candidates left to combine with.
	base, err := s.SelectTopN(ctx, titles, maxKeywords*2)
	if err != nil {
		return Selection{}, err
	}
	if len(base.Items) == 0 {
		base.Items = []Item{}
		return base, nil
	}

	best := base.Items[0]
	out := []Item{best}
	used := map[string]struct{}{text.Normalize(best.Text): {}}

	for _, cand := range base.Items[1:] {
		if len(out) == maxKeywords {
			break
		}
		key := text.Normalize(cand.Text)
		if _, taken := used[key]; taken {
			continue
		}
		used[key] = struct{}{}

		combo := s.validateCombination(ctx, best, cand)
		if combo != nil {
			out = append(out, *combo)
		} else {
			out = append(out, cand)
		}
	}

	base.Items = out
	return base, nil
}

// validateCombination tries the four join forms of best+cand and returns the
// first one with real volume data, or nil when none validates.
func (s *Selector) validateCombination(ctx context.Context, best, cand Item) *Item {
	forms := []string{
		best.Text + " " + cand.Text,
		cand.Text + " " + best.Text,
		text.StripSpaces(best.Text + cand.Text),
		text.StripSpaces(cand.Text + best.Text),
	}

	for _, form := range forms {
		if item := s.lookupCombination(ctx, form, cand.Frequency); item != nil {
			return item
		}
	}

	// Not in the store: one budget-gated resolve over all forms.
	if !s.budgetRemaining() {
		return nil
	}
	result, err := s.resolver.ResolveGated(ctx, forms)
	if err != nil {
		return nil
	}

	for _, form := range forms {
		vol, ok := result.Volumes[text.Normalize(form)]
		if !ok || !vol.FromAPI || vol.Total <= 0 {
			continue
		}

		rec := s.recordFor(vol)
		rec.Source = store.SourceAutoCombination
		if _, err := s.store.Upsert(ctx, []store.KeywordRecord{rec}); err != nil {
			s.log.WithError(err).WithField("keyword", form).Warn("failed to persist combination keyword")
		}

		return &Item{
			Text:          vol.Surface,
			RawVolume:     vol.Total,
			Score:         rec.Score,
			CombinedScore: s.combined(rec.Score, cand.Frequency),
			Frequency:     cand.Frequency,
			Combined:      true,
		}
	}
	return nil
}

func (s *Selector) lookupCombination(ctx context.Context, form string, frequency int) *Item {
	rec, err := s.store.FindByText(ctx, form)
	if err != nil || rec == nil {
		return nil
	}
	if rec.Excluded || rec.RawVolume <= 0 {
		return nil
	}
	return &Item{
		Text:          rec.Text,
		RawVolume:     rec.RawVolume,
		Score:         rec.Score,
		CombinedScore: s.combined(rec.Score, frequency),
		Frequency:     frequency,
		Combined:      true,
	}
}
