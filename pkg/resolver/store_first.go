package resolver

import (
	"context"

	"keywordscout-go/pkg/score"
	"keywordscout-go/pkg/store"
	"keywordscout-go/pkg/text"
)

// FreshVolumes serves every keyword with a store record younger than the TTL
// and returns the stale-or-unknown remainder. It never touches the API or the
// call budget; the caller decides how the remainder is resolved and charged.
func (r *Resolver) FreshVolumes(ctx context.Context, keywords []string) (map[string]Volume, []string, error) {
	requested := dedupeKeywords(keywords)
	fresh := make(map[string]Volume, len(requested))
	var remainder []string

	if r.store == nil {
		for _, kw := range requested {
			remainder = append(remainder, kw.surface)
		}
		return fresh, remainder, nil
	}

	now := r.now()
	for _, kw := range requested {
		rec, err := r.findStored(ctx, kw)
		if err != nil {
			return nil, nil, err
		}
		if rec != nil && !rec.StaleAfter(TTL, now) {
			fresh[kw.key] = volumeFromRecord(*rec)
			continue
		}
		remainder = append(remainder, kw.surface)
	}
	return fresh, remainder, nil
}

// ResolveWithStore is the DB-first variant: records younger than the TTL are
// served from the keyword store, only the stale or unknown remainder hits the
// API (budget-gated), and fresh API results are written back with an
// auto-enrich provenance tag.
func (r *Resolver) ResolveWithStore(ctx context.Context, keywords []string) (Result, error) {
	fresh, missing, err := r.FreshVolumes(ctx, keywords)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Volumes: fresh,
		Mode:    ModeSearchAds,
		Stats:   Stats{StatusCounts: make(map[int]int), FromStore: len(fresh)},
	}

	if len(missing) == 0 {
		return result, nil
	}

	apiResult, err := r.ResolveGated(ctx, missing)
	if err == ErrBudgetExhausted {
		// Budget denial is flow control: serve what the store had and
		// placeholder the rest, flagged via mode.
		result.Stats.BudgetDenials++
		result.Mode = ModePartial
		r.fillPlaceholders(&result, dedupeKeywords(missing))
		return result, nil
	}
	if err != nil {
		return Result{}, err
	}

	result.Mode = apiResult.Mode
	result.Stats.Chunks = apiResult.Stats.Chunks
	result.Stats.ChunksOK = apiResult.Stats.ChunksOK
	result.Stats.ChunksFailed = apiResult.Stats.ChunksFailed
	result.Stats.APIKeywords = apiResult.Stats.APIKeywords
	for status, n := range apiResult.Stats.StatusCounts {
		result.Stats.StatusCounts[status] += n
	}

	var writeBack []store.KeywordRecord
	for key, vol := range apiResult.Volumes {
		result.Volumes[key] = vol
		if vol.FromAPI {
			writeBack = append(writeBack, recordFromVolume(vol))
		}
	}

	if r.store != nil && len(writeBack) > 0 {
		if _, err := r.store.Upsert(ctx, writeBack); err != nil {
			// Persistence trouble must not fail the resolve; the data is
			// already in hand.
			r.log.WithError(err).Warn("failed to write resolved volumes back to store")
		}
	}

	return result, nil
}

func (r *Resolver) findStored(ctx context.Context, kw requestedKeyword) (*store.KeywordRecord, error) {
	if r.store == nil {
		return nil, nil
	}

	// Try the raw surface and its space-stripped variant; both normalize to
	// the same key but may be stored under either display form.
	for _, variant := range []string{kw.surface, text.StripSpaces(kw.surface)} {
		rec, err := r.store.FindByText(ctx, variant)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func volumeFromRecord(rec store.KeywordRecord) Volume {
	cpc := 0
	if rec.EstCPCKrw != nil {
		cpc = *rec.EstCPCKrw
	}
	return Volume{
		Total:          rec.RawVolume,
		CompIdx:        rec.CompIdx,
		AdDepth:        rec.AdDepth,
		CPC:            cpc,
		FromAPI:        true,
		CPCFromAccount: rec.EstCPCSource == store.CPCSourceAccount,
		Surface:        rec.Text,
	}
}

func recordFromVolume(vol Volume) store.KeywordRecord {
	compScore := score.CompIdxToScore(vol.CompIdx)
	cpc := vol.CPC

	cpcSource := store.CPCSourceEstimated
	if vol.CPCFromAccount {
		cpcSource = store.CPCSourceAccount
	}
	if cpc == 0 {
		cpcSource = store.CPCSourceUnknown
	}

	return store.KeywordRecord{
		Text:         vol.Surface,
		RawVolume:    vol.Total,
		CompIdx:      vol.CompIdx,
		CompScore:    compScore,
		AdDepth:      vol.AdDepth,
		EstCPCKrw:    &cpc,
		EstCPCSource: cpcSource,
		Score:        score.OverallScore(vol.Total, compScore, vol.AdDepth, cpc),
		Source:       store.SourceAutoEnrich,
	}
}
