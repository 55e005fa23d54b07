// Package score holds the pure scoring functions of the keyword pipeline.
// Everything here is stateless and deterministic.
package score

import (
	"math"
	"strings"
)

// Sub-score weights for the overall composite. Raw search volume spans orders
// of magnitude, so it enters on a log scale rather than linearly.
const (
	weightVolume = 0.35
	weightComp   = 0.35
	weightDepth  = 0.20
	weightCPC    = 0.10

	volumeLogCeil = 5.0    // log10(100k) caps the volume sub-score
	depthCeil     = 5.0    // ad slots
	cpcCeilKRW    = 5000.0 // won
)

// DefaultVolumeWeight / DefaultContentWeight are the 70/30 split used by
// title-selection ranking (volume-dominant, content/ad-signal secondary).
const (
	DefaultVolumeWeight  = 0.7
	DefaultContentWeight = 0.3
)

// CompIdxToScore maps a competition label to a 0-100 score. Both Korean and
// English labels are accepted; unknown labels land on medium.
func CompIdxToScore(label string) int {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "low", "낮음":
		return 20
	case "medium", "mid", "중간":
		return 60
	case "high", "높음":
		return 100
	default:
		return 60
	}
}

// OverallScore blends volume, competition, ad depth and CPC into a 0-100
// composite. OverallScore(0, 0, 0, 0) == 0.
func OverallScore(rawVolume, compScore, adDepth, cpcKRW int) int {
	volumeNorm := clamp01(math.Log10(math.Max(1, float64(rawVolume))) / volumeLogCeil)
	compNorm := clamp01(float64(compScore) / 100.0)
	depthNorm := clamp01(float64(adDepth) / depthCeil)
	cpcNorm := clamp01(float64(cpcKRW) / cpcCeilKRW)

	composite := weightVolume*volumeNorm +
		weightComp*compNorm +
		weightDepth*depthNorm +
		weightCPC*cpcNorm

	return clampScore(int(math.Round(composite * 100)))
}

// CombinedScore blends two 0-100 scores with the given weights and rounds.
func CombinedScore(volumeScore, otherScore int, volumeWeight, otherWeight float64) int {
	blended := volumeWeight*float64(volumeScore) + otherWeight*float64(otherScore)
	return clampScore(int(math.Round(blended)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
