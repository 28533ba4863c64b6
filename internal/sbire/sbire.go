// Package sbire is the Coherence Agent's deterministic executor: it answers
// typed search mandates (GREP, SQL, WORD2VEC) and performs the mutation
// primitives the agent decides on, all without spending any LLM tokens.
package sbire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"memoire/internal/models"
	"memoire/internal/observability"
	"memoire/internal/store"
)

// Stats counts executions and mutations performed by a Sbire over its
// lifetime.
type Stats struct {
	GrepExecutes     int
	SQLExecutes      int
	Word2VecExecutes int
	UpdatesStatut    int
	InsertsEdge      int
	InsertsPilier    int
	InsertsSegment   int
}

// Word2Vec expands a query term to its nearest neighbors. Implementations
// return ErrModelUnavailable when no model is loaded, at which point callers
// degrade to a plain SQL mandate.
type Word2Vec interface {
	Expand(query string, topN int) ([]string, error)
}

// ErrModelUnavailable signals that no word2vec model could be loaded.
var ErrModelUnavailable = fmt.Errorf("sbire: word2vec model unavailable")

// Sbire executes mandates and mutations against the store and the fragment
// file tree. All operations are deterministic; it never calls an LLM.
type Sbire struct {
	segments    *store.SegmentRepository
	edges       *store.EdgeRepository
	piliers     *store.PilierRepository
	fragmentDir string
	word2vec    Word2Vec
	verbose     bool
	log         *logrus.Logger
	tracer      *observability.PhaseTracer

	stats Stats
}

// New builds a Sbire over an open store and the root of the tokenized
// fragment tree written by the Indexer. word2vec may be nil, in which case
// WORD2VEC mandates always degrade to SQL.
func New(segments *store.SegmentRepository, edges *store.EdgeRepository, piliers *store.PilierRepository, fragmentDir string, word2vec Word2Vec, log *logrus.Logger) *Sbire {
	return &Sbire{
		segments:    segments,
		edges:       edges,
		piliers:     piliers,
		fragmentDir: fragmentDir,
		word2vec:    word2vec,
		log:         log,
		tracer:      observability.GetTracer(),
	}
}

// SetVerbose toggles per-mandate execution logging.
func (s *Sbire) SetVerbose(v bool) { s.verbose = v }

// WithTracer overrides the Sbire's PhaseTracer, e.g. to export mandate spans
// instead of discarding them.
func (s *Sbire) WithTracer(tracer *observability.PhaseTracer) *Sbire {
	s.tracer = tracer
	return s
}

// Stats returns a copy of the execution counters.
func (s *Sbire) Stats() Stats { return s.stats }

// Execute dispatches a mandate to its typed handler.
func (s *Sbire) Execute(ctx context.Context, m models.Mandat) []models.SearchHit {
	if s.verbose {
		s.log.WithFields(logrus.Fields{"type": m.Type, "iteration": m.Iteration}).Debug("sbire: executing mandate")
	}

	ctx, span := s.tracer.StartMandate(ctx, string(m.Type), m.Iteration)
	var hits []models.SearchHit
	switch m.Type {
	case models.MandatGrep:
		hits = s.Grep(m.Pattern, m.MaxResults)
	case models.MandatSQL:
		hits = s.SQL(ctx, m.Query, m.MaxResults)
	case models.MandatWord2Vec:
		hits = s.Word2VecSearch(ctx, m.Query, m.MaxResults)
	default:
		if s.verbose {
			s.log.WithField("type", m.Type).Warn("sbire: unknown mandate type")
		}
	}
	s.tracer.EndMandate(span, len(hits))
	return hits
}

// Grep scans fragment files newest-first for a regex pattern, matching
// case-insensitively line by line and extracting the leading token offset
// when the line carries one (the indexer's `token|content` format).
func (s *Sbire) Grep(pattern string, maxResults int) []models.SearchHit {
	s.stats.GrepExecutes++
	if maxResults <= 0 {
		maxResults = 50
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		if s.verbose {
			s.log.WithError(err).Warn("sbire: invalid grep pattern")
		}
		return nil
	}

	var hits []models.SearchHit
	for _, file := range s.fragmentFilesNewestFirst() {
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(s.fragmentDir, file)
		if err != nil {
			rel = file
		}

		for lineNo, line := range strings.Split(string(content), "\n") {
			loc := re.FindStringIndex(line)
			if loc == nil {
				continue
			}
			tokenStart := -1
			if idx := strings.Index(line, "|"); idx >= 0 {
				if n, err := strconv.Atoi(line[:idx]); err == nil {
					tokenStart = n
				}
			}
			content := line
			if len(content) > 500 {
				content = content[:500]
			}
			hits = append(hits, models.SearchHit{
				File:        rel,
				LineNo:      lineNo + 1,
				TokenStart:  tokenStart,
				Content:     content,
				MatchedText: line[loc[0]:loc[1]],
			})
			if len(hits) >= maxResults {
				return hits
			}
		}
	}
	return hits
}

// fragmentFilesNewestFirst walks fragmentDir (laid out baseDir/YYYY/MM/*.txt
// by the Indexer) and returns every .txt file, most recent path first.
func (s *Sbire) fragmentFilesNewestFirst() []string {
	if s.fragmentDir == "" {
		return nil
	}
	var files []string
	_ = filepath.WalkDir(s.fragmentDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".txt") {
			files = append(files, path)
		}
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files
}

// SQL searches resume_texte, sujets, personnes and projets for a keyword,
// newest first, bounded by maxResults.
func (s *Sbire) SQL(ctx context.Context, query string, maxResults int) []models.SearchHit {
	s.stats.SQLExecutes++
	if maxResults <= 0 {
		maxResults = 50
	}

	q := store.CandidateQuery{
		Groups: []store.Group{{
			store.ResumeKeywordCondition(query),
			store.SujetKeywordCondition(query),
			store.PersonneCondition(query),
			store.ProjetKeywordCondition(query),
		}},
		Limit: maxResults,
	}
	segs, err := s.segments.FindCandidates(ctx, q)
	if err != nil {
		if s.verbose {
			s.log.WithError(err).Warn("sbire: sql mandate failed")
		}
		return nil
	}
	return hitsFromSegments(segs)
}

// SQLByIDs retrieves segments by id, used to confirm candidate ids an LLM
// names back against the set that was actually offered.
func (s *Sbire) SQLByIDs(ctx context.Context, ids []int64) []models.SearchHit {
	var hits []models.SearchHit
	for _, id := range ids {
		seg, err := s.segments.GetByID(ctx, id)
		if err != nil || seg == nil {
			continue
		}
		hits = append(hits, hitsFromSegments([]*models.Segment{seg})...)
	}
	return hits
}

// Word2VecSearch expands query to its nearest neighbors and aggregates SQL
// results across the top-5 expanded terms, deduplicating by segment id. It
// degrades to a plain SQL mandate when no model is loaded or expansion fails.
func (s *Sbire) Word2VecSearch(ctx context.Context, query string, maxResults int) []models.SearchHit {
	s.stats.Word2VecExecutes++
	if maxResults <= 0 {
		maxResults = 50
	}
	if s.word2vec == nil {
		return s.SQL(ctx, query, maxResults)
	}

	neighbors, err := s.word2vec.Expand(query, 10)
	if err != nil {
		return s.SQL(ctx, query, maxResults)
	}

	terms := append([]string{query}, neighbors...)
	if len(terms) > 5 {
		terms = terms[:5]
	}

	var results []models.SearchHit
	seen := make(map[int64]bool)
	perTerm := maxResults / 2
	if perTerm < 1 {
		perTerm = 1
	}
	for _, term := range terms {
		for _, hit := range s.SQL(ctx, term, perTerm) {
			if hit.SegmentID == 0 || seen[hit.SegmentID] {
				continue
			}
			seen[hit.SegmentID] = true
			results = append(results, hit)
			if len(results) >= maxResults {
				return results
			}
		}
	}
	return results
}

func hitsFromSegments(segs []*models.Segment) []models.SearchHit {
	hits := make([]models.SearchHit, 0, len(segs))
	for _, seg := range segs {
		hits = append(hits, models.SearchHit{
			SegmentID:    seg.ID,
			SourceFile:   seg.SourceFile,
			ResumeTexte:  seg.ResumeTexte,
			StatutVerite: seg.StatutVerite,
			Personnes:    seg.Personnes,
			Projets:      seg.Projets,
			Sujets:       seg.Sujets,
			TokenStart:   seg.TokenStart,
			TokenEnd:     seg.TokenEnd,
		})
	}
	return hits
}

// UpdateStatutVerite marks a segment's truth status.
func (s *Sbire) UpdateStatutVerite(ctx context.Context, segmentID int64, status models.TruthStatus) bool {
	if err := s.segments.UpdateStatutVerite(ctx, segmentID, status); err != nil {
		if s.verbose {
			s.log.WithError(err).Warn("sbire: update statut_verite failed")
		}
		return false
	}
	s.stats.UpdatesStatut++
	return true
}

// InsertEdge links two segments with a typed, weighted relation.
func (s *Sbire) InsertEdge(ctx context.Context, sourceID, targetID int64, edgeType models.EdgeType, metadataJSON string, weight float64) bool {
	if weight == 0 {
		weight = 1.0
	}
	e := &models.Edge{SourceID: sourceID, TargetID: targetID, Type: edgeType, Metadata: metadataJSON, Weight: weight}
	if err := s.edges.Create(ctx, e); err != nil {
		if s.verbose {
			s.log.WithError(err).Warn("sbire: insert edge failed")
		}
		return false
	}
	s.stats.InsertsEdge++
	return true
}

// InsertPilier creates a consolidated fact, returning its id, or nil on
// failure.
func (s *Sbire) InsertPilier(ctx context.Context, fact string, category models.PilierCategory, importance int, sourceID *int64) *int64 {
	p := &models.Pilier{Fact: fact, Category: category, Importance: importance, SourceID: sourceID}
	if err := s.piliers.Create(ctx, p); err != nil {
		if s.verbose {
			s.log.WithError(err).Warn("sbire: insert pilier failed")
		}
		return nil
	}
	s.stats.InsertsPilier++
	return &p.ID
}

// InsertSegmentInternal inserts a segment authored by Iris's own reflection
// loop — the mechanism by which Mnémosyne's findings become searchable
// memory for Iris itself.
func (s *Sbire) InsertSegmentInternal(ctx context.Context, resume, sourceTag, author string) *int64 {
	if author == "" {
		author = "iris_internal"
	}
	now := time.Now().UTC()
	seg := &models.Segment{
		Timestamp:       now,
		TimestampEpoch:  now.Unix(),
		SourceFile:      fmt.Sprintf("internal/%s", sourceTag),
		SourceNature:    "reflexion",
		SourceFormat:    "internal",
		SourceOrigine:   sourceTag,
		Auteur:          models.Author(author),
		ResumeTexte:     resume,
		StatutVerite:    models.TruthValidated,
		ConfidenceScore: 1.0,
	}
	if err := s.segments.Create(ctx, seg); err != nil {
		if s.verbose {
			s.log.WithError(err).Warn("sbire: insert internal segment failed")
		}
		return nil
	}
	s.stats.InsertsSegment++
	return &seg.ID
}

// CheckSegmentExists reports whether a segment id is present in the store.
func (s *Sbire) CheckSegmentExists(ctx context.Context, id int64) bool {
	seg, err := s.segments.GetByID(ctx, id)
	return err == nil && seg != nil
}
