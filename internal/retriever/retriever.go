package retriever

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"memoire/internal/models"
	"memoire/internal/store"
)

// ProfileInfo records which weights actually drove a Run, for callers that
// want to surface whether a QueryProfile or the baseline defaults applied.
type ProfileInfo struct {
	Source  string
	Intent  string
	Weights models.QueryWeights
}

// Result is the outcome of one Run call.
type Result struct {
	Query            string
	ParsedQuery      ParsedQuery
	Results          []ScoredSegment
	FormattedContext string
	Count            int
	Fallback         bool
	ProfileUsed      ProfileInfo
}

// RunOptions tunes a single Run call beyond what the QueryProfile governs.
type RunOptions struct {
	// TopK overrides profile.Strategy.TopK when > 0.
	TopK int
	// FormatContext controls whether FormattedContext is populated.
	FormatContext bool
	// Now overrides the reference time for recency scoring and relative
	// date parsing; defaults to time.Now() when zero.
	Now time.Time
}

// Retriever is Hermès: parses a query, generates bounded SQL candidates,
// scores and ranks them, and falls back to a raw text-file scan when
// metadata search yields nothing.
type Retriever struct {
	segments    *store.SegmentRepository
	textBaseDir string
	log         *logrus.Logger
}

// NewRetriever wires a Retriever over a segment repository and the root
// directory fragment files live under (for the text-fallback scan).
func NewRetriever(segments *store.SegmentRepository, textBaseDir string, log *logrus.Logger) *Retriever {
	return &Retriever{segments: segments, textBaseDir: textBaseDir, log: log}
}

// Run executes the full Hermès pipeline for one query. profile may be nil,
// in which case the baseline default weights and strategy apply.
func (r *Retriever) Run(ctx context.Context, query string, profile *models.QueryProfile, opts RunOptions) (Result, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	effective := models.DefaultProfile()
	source := "default"
	if profile != nil {
		effective = *profile
		source = "QueryProfile"
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = effective.Strategy.TopK
	}
	if topK <= 0 {
		topK = 5
	}

	parsed := ParseQuery(query, now)

	result := Result{
		Query:       query,
		ParsedQuery: parsed,
		ProfileUsed: ProfileInfo{Source: source, Intent: effective.Intent, Weights: effective.Weights},
	}

	q := BuildCandidateQuery(now, parsed, effective.Filters)
	candidates, err := r.segments.FindCandidates(ctx, q)
	if err != nil {
		return result, fmt.Errorf("retriever: find candidates: %w", err)
	}

	if len(candidates) == 0 {
		if effective.Strategy.IncludeTextFallback {
			fallback, ferr := r.fallbackScan(query, topK)
			if ferr != nil {
				r.log.WithError(ferr).Warn("retriever: text fallback scan failed")
			} else if len(fallback) > 0 {
				result.Results = fallback
				result.Count = len(fallback)
				result.Fallback = true
				if opts.FormatContext {
					result.FormattedContext = FormatContext(fallback, 0)
				}
				return result, nil
			}
		}
		return result, nil
	}

	scored := ScoreCandidates(now, candidates, parsed, effective.Weights)
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Segment.Timestamp.After(scored[j].Segment.Timestamp)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	result.Results = scored
	result.Count = len(scored)
	if opts.FormatContext {
		result.FormattedContext = FormatContext(scored, 0)
	}
	return result, nil
}

// ByPerson is the "by person" specialized facet: segments mentioning nom,
// newest first.
func (r *Retriever) ByPerson(ctx context.Context, nom string, limit int) ([]*models.Segment, error) {
	q := store.CandidateQuery{Groups: []store.Group{{store.PersonneCondition(nom)}}, Limit: limit}
	return r.segments.FindCandidates(ctx, q)
}

// ByDateRange is the "by date range" facet: segments whose timestamp falls
// within [from, to], newest first.
func (r *Retriever) ByDateRange(ctx context.Context, from, to time.Time, limit int) ([]*models.Segment, error) {
	q := store.CandidateQuery{
		Groups: []store.Group{
			{store.DateRangeCondition(from.Unix())},
			{{SQL: "timestamp_epoch <= ?", Arg: to.Unix()}},
		},
		Limit: limit,
	}
	return r.segments.FindCandidates(ctx, q)
}

// ByTags is the "by tags" facet: delegates to the full query pipeline with
// the tag list joined as free query text.
func (r *Retriever) ByTags(ctx context.Context, tags []string, profile *models.QueryProfile, opts RunOptions) (Result, error) {
	return r.Run(ctx, strings.Join(tags, " "), profile, opts)
}

// ByEmotion is the "by emotion" facet: the most recent candidates resorted
// by similarity to a target emotion.
func (r *Retriever) ByEmotion(ctx context.Context, target EmotionTarget, limit int) ([]ScoredSegment, error) {
	const recentWindow = 500
	q := store.CandidateQuery{Limit: recentWindow}
	candidates, err := r.segments.FindCandidates(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("retriever: by emotion: %w", err)
	}

	parsed := ParsedQuery{EmotionCible: &target}
	scored := ScoreCandidates(time.Now().UTC(), candidates, parsed, models.DefaultWeights())
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Detail.Emotion > scored[j].Detail.Emotion })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// fallbackScan scans every file under textBaseDir for case-insensitive
// occurrences of query and returns at most topK pseudo-results at the
// fixed fallback score 0.1, the last resort when structured search turns
// up nothing.
func (r *Retriever) fallbackScan(query string, topK int) ([]ScoredSegment, error) {
	if r.textBaseDir == "" {
		return nil, nil
	}
	needle := strings.ToLower(query)

	var hits []ScoredSegment
	err := filepath.WalkDir(r.textBaseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if len(hits) >= topK {
			return nil
		}

		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		for _, line := range strings.Split(string(content), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				rel, _ := filepath.Rel(r.textBaseDir, path)
				snippet := line
				if len(snippet) > 200 {
					snippet = snippet[:200]
				}
				hits = append(hits, ScoredSegment{
					Segment: &models.Segment{SourceFile: rel, ResumeTexte: snippet},
					Score:   0.1,
					Detail:  ScoreDetail{},
				})
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
