package indexer

import "memoire/internal/models"

// Thresholds a same-(timestamp,auteur) run of turns must cross before a new
// segment is inserted for it.
const (
	valenceThreshold    = 0.3
	activationThreshold = 0.3
)

// significantChange reports whether curr's metadata diverges enough from
// prev's to warrant its own segment: a nil prev is always significant
// (nothing to compare against yet); otherwise a changed first tag or a
// valence/activation swing past threshold is.
func significantChange(prev, curr *models.ExtractorRecord) bool {
	if prev == nil {
		return true
	}
	if len(prev.TagsRoget) > 0 && len(curr.TagsRoget) > 0 && prev.TagsRoget[0] != curr.TagsRoget[0] {
		return true
	}
	if absFloat(curr.EmotionValence-prev.EmotionValence) > valenceThreshold {
		return true
	}
	if absFloat(curr.EmotionActivation-prev.EmotionActivation) > activationThreshold {
		return true
	}
	return false
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
