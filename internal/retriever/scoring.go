package retriever

import (
	"math"
	"strings"
	"time"

	"memoire/internal/models"
	"memoire/internal/store"
	"memoire/internal/taxonomy"
)

// maskPositions is the only QueryWeights keys that translate into sparse
// vector positions rather than staying SQL-only.
var maskPositions = map[string][]int{
	"emotion":    {1, 2, 3, 4, 5, 6, 7},
	"tags_roget": {61, 62, 63, 64, 65, 66},
}

// buildQueryMask translates a QueryProfile's weights into a sparse position
// mask.
func buildQueryMask(weights models.QueryWeights) models.Vector {
	mask := models.Vector{}
	if weights.Emotion > 0 {
		for _, pos := range maskPositions["emotion"] {
			mask[pos] = weights.Emotion
		}
	}
	if weights.TagsRoget > 0 {
		for _, pos := range maskPositions["tags_roget"] {
			mask[pos] = weights.TagsRoget
		}
	}
	return mask
}

// resonance is the sparse dot product of a segment's vector against a
// query mask.
func resonance(vec models.Vector, mask models.Vector) float64 {
	score := 0.0
	for pos, value := range vec {
		if w, ok := mask[pos]; ok {
			score += value * w
		}
	}
	return score
}

// ScoreDetail is the per-signal breakdown for one scored segment, kept
// around for debugging and inspection.
type ScoreDetail struct {
	Roget     float64
	Emotion   float64
	Temporel  float64
	Personnes float64
	Resume    float64
	Trildasa  float64
}

// ScoredSegment pairs a candidate segment with its combined score and
// per-signal breakdown.
type ScoredSegment struct {
	Segment *models.Segment
	Score   float64
	Detail  ScoreDetail
}

// scoreRoget scores best-case hierarchical proximity against explicit
// query tags, else a neutral/low default.
func scoreRoget(parsed ParsedQuery, seg *models.Segment) float64 {
	if len(parsed.TagsExplicites) > 0 && len(seg.TagsRoget) > 0 {
		best := 0.0
		for _, qtag := range parsed.TagsExplicites {
			for _, stag := range seg.TagsRoget {
				if p := taxonomy.Prox(qtag, stag); p > best {
					best = p
				}
			}
		}
		return best
	}
	if len(seg.TagsRoget) > 0 {
		return 0.5
	}
	return 0.3
}

// scoreEmotion implements score_emotion: cosine similarity between the
// query's emotion target and the segment's (valence, activation), remapped
// from [-1,1] to [0,1]; 0.5 absent a target.
func scoreEmotion(parsed ParsedQuery, seg *models.Segment) float64 {
	if parsed.EmotionCible == nil {
		return 0.5
	}
	v1, a1 := parsed.EmotionCible.Valence, parsed.EmotionCible.Activation
	v2, a2 := seg.EmotionValence, seg.EmotionActivation

	dot := v1*v2 + a1*a2
	norm1 := math.Sqrt(v1*v1 + a1*a1)
	norm2 := math.Sqrt(v2*v2 + a2*a2)
	if norm1 == 0 || norm2 == 0 {
		return 0.5
	}
	cosine := dot / (norm1 * norm2)
	return (cosine + 1) / 2
}

// scoreTemporal implements score_temporal: recency decay over one year,
// floored at 0.1; 0.5 if the segment has no usable timestamp.
func scoreTemporal(now time.Time, seg *models.Segment) float64 {
	if seg.Timestamp.IsZero() {
		return 0.5
	}
	daysAgo := now.Sub(seg.Timestamp).Hours() / 24
	score := 1.0 - daysAgo/365
	if score < 0.1 {
		return 0.1
	}
	return score
}

// scorePersonnes implements score_personnes: a 0.5 baseline, +0.25 per
// queried person found (accent/case-insensitively) among the segment's
// personnes, capped at 1.0.
func scorePersonnes(parsed ParsedQuery, seg *models.Segment) float64 {
	if len(parsed.Personnes) == 0 || len(seg.Personnes) == 0 {
		return 0.5
	}
	normSeg := store.NormalizeSearch(strings.Join(seg.Personnes, " "))
	matches := 0
	for _, p := range parsed.Personnes {
		if strings.Contains(normSeg, store.NormalizeSearch(p)) {
			matches++
		}
	}
	if matches == 0 {
		return 0.5
	}
	score := 0.5 + float64(matches)*0.25
	if score > 1.0 {
		return 1.0
	}
	return score
}

// scoreResume implements score_resume: 0.3 baseline plus 0.15 per keyword
// hit in the lowercased summary, capped at 1.0; 0.5 if there are no parsed
// keywords.
func scoreResume(parsed ParsedQuery, seg *models.Segment) float64 {
	if len(parsed.MotsCles) == 0 || seg.ResumeTexte == "" {
		return 0.5
	}
	lower := strings.ToLower(seg.ResumeTexte)
	matches := 0
	for _, mot := range parsed.MotsCles {
		if strings.Contains(lower, mot) {
			matches++
		}
	}
	score := 0.3 + float64(matches)*0.15
	if score > 1.0 {
		return 1.0
	}
	return score
}

// scoreTrildasa implements score_trildasa: sparse resonance between the
// segment's stored vector and the query mask, normalized by a theoretical
// max of 5.0; 0.5 absent a stored vector.
func scoreTrildasa(seg *models.Segment, mask models.Vector) float64 {
	if len(seg.Vecteur) == 0 {
		return 0.5
	}
	raw := resonance(seg.Vecteur, mask)
	score := raw / 5.0
	if score > 1.0 {
		return 1.0
	}
	return score
}

// ScoreCandidates computes the weighted hybrid score for every candidate.
// now is injected so temporal scoring is deterministic and testable.
func ScoreCandidates(now time.Time, candidates []*models.Segment, parsed ParsedQuery, weights models.QueryWeights) []ScoredSegment {
	mask := buildQueryMask(weights)
	scored := make([]ScoredSegment, len(candidates))

	for i, seg := range candidates {
		detail := ScoreDetail{
			Roget:     scoreRoget(parsed, seg),
			Emotion:   scoreEmotion(parsed, seg),
			Temporel:  scoreTemporal(now, seg),
			Personnes: scorePersonnes(parsed, seg),
			Resume:    scoreResume(parsed, seg),
			Trildasa:  scoreTrildasa(seg, mask),
		}

		base := weights.TagsRoget*detail.Roget +
			weights.Emotion*detail.Emotion +
			weights.Timestamp*detail.Temporel +
			weights.Personnes*detail.Personnes +
			weights.ResumeTexte*detail.Resume

		scored[i] = ScoredSegment{
			Segment: seg,
			Score:   base * (1 + 0.2*detail.Trildasa),
			Detail:  detail,
		}
	}
	return scored
}
