package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"memoire/internal/extractor"
	"memoire/internal/models"
	"memoire/internal/store"
	"memoire/internal/vectorengine"
)

// BulkConfig controls the streaming bulk path: how turns are chunked and
// how many batches run concurrently.
type BulkConfig struct {
	// BatchSize is how many turns are sent to the extractor per call.
	BatchSize int
	// ParallelBatches bounds how many batches are extracted concurrently
	// per group; 1 means strictly sequential.
	ParallelBatches int
	// FragmentDir is the root the tokenized fragment mirror is written
	// under.
	FragmentDir string
}

// DefaultBulkConfig returns the sequential-mode defaults: small batches,
// one at a time, local backend friendly.
func DefaultBulkConfig() BulkConfig {
	return BulkConfig{BatchSize: 5, ParallelBatches: 1, FragmentDir: "echanges"}
}

// BulkResult summarizes one Run call's outcome.
type BulkResult struct {
	EchangesParsed       int
	SegmentsCreated      int
	PhatiqueSkipped      int
	InsignificantSkipped int
	CandidatesPersonnes  int
	CandidatesProjets    int
	FragmentPath         string
	LastGrID             int64
	Duration             time.Duration
}

// BulkIndexer runs the streaming bulk path: parse, fragment, batch-extract,
// and insert, against an embedded Store.
type BulkIndexer struct {
	extractor  *extractor.Client
	segments   *store.SegmentRepository
	candidates *store.CandidateRepository
	vecEngine  *vectorengine.Engine
	tokenizer  Tokenizer
	log        *logrus.Logger
	metrics    *Metrics

	cfg BulkConfig
}

// NewBulkIndexer wires a BulkIndexer from its collaborators. tok may be nil,
// in which case DefaultTokenizer() supplies the cl100k_base encoder.
func NewBulkIndexer(
	client *extractor.Client,
	segments *store.SegmentRepository,
	candidates *store.CandidateRepository,
	vecEngine *vectorengine.Engine,
	tok Tokenizer,
	log *logrus.Logger,
	cfg BulkConfig,
) (*BulkIndexer, error) {
	if tok == nil {
		var err error
		tok, err = DefaultTokenizer()
		if err != nil {
			return nil, fmt.Errorf("indexer: load tokenizer: %w", err)
		}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.ParallelBatches <= 0 {
		cfg.ParallelBatches = 1
	}
	return &BulkIndexer{
		extractor:  client,
		segments:   segments,
		candidates: candidates,
		vecEngine:  vecEngine,
		tokenizer:  tok,
		log:        log,
		metrics:    newMetrics(),
		cfg:        cfg,
	}, nil
}

// Run parses rawText into turns, writes its fragment file, and drains it
// through the batch extraction/insertion pipeline.
func (b *BulkIndexer) Run(ctx context.Context, sourceFile, sourceOrigine, rawText string) (BulkResult, error) {
	start := time.Now()

	turns := ParseTurns(rawText, b.tokenizer)
	result := BulkResult{EchangesParsed: len(turns)}
	if len(turns) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	fragPath, err := WriteFragmentFile(b.cfg.FragmentDir, rawText, turns[0].Timestamp, b.tokenizer)
	if err != nil {
		return result, err
	}
	result.FragmentPath = fragPath

	batches := chunkTurns(turns, b.cfg.BatchSize)

	var prevRec *models.ExtractorRecord
	var prevAuteur models.Author
	var prevTimestamp string
	var lastGrID int64

	for groupStart := 0; groupStart < len(batches); groupStart += b.cfg.ParallelBatches {
		groupEnd := groupStart + b.cfg.ParallelBatches
		if groupEnd > len(batches) {
			groupEnd = len(batches)
		}

		groupResults := make([][]models.ExtractorRecord, groupEnd-groupStart)

		g, gctx := errgroup.WithContext(ctx)
		for i := groupStart; i < groupEnd; i++ {
			i := i
			g.Go(func() error {
				texts := make([]string, len(batches[i]))
				for j, turn := range batches[i] {
					texts[j] = strings.ReplaceAll(cleanSegment(turn.Texte), `\`, `\\`)
				}
				records, err := b.extractor.ExtractBatch(gctx, texts)
				if err != nil {
					return fmt.Errorf("indexer: extract batch %d: %w", i, err)
				}
				groupResults[i-groupStart] = records
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}

		for i := groupStart; i < groupEnd; i++ {
			records := groupResults[i-groupStart]
			for _, rec := range records {
				if rec.GrID != nil && rec.Indexable && *rec.GrID > lastGrID {
					lastGrID = *rec.GrID
				}
			}

			for j, turn := range batches[i] {
				rec := records[j]

				shouldInsert := prevRec == nil ||
					turn.Timestamp != prevTimestamp ||
					turn.Auteur != prevAuteur ||
					significantChange(prevRec, &rec)

				if shouldInsert {
					outcome, err := b.insertTurn(ctx, turn, rec, sourceFile, sourceOrigine)
					if err != nil {
						return result, err
					}
					switch {
					case !rec.Indexable:
						result.PhatiqueSkipped++
					case outcome.created:
						result.SegmentsCreated++
						if outcome.personneCandidat {
							result.CandidatesPersonnes++
						}
						if outcome.projetCandidat {
							result.CandidatesProjets++
						}
					}
				} else {
					result.InsignificantSkipped++
				}

				recCopy := rec
				prevRec = &recCopy
				prevAuteur = turn.Auteur
				prevTimestamp = turn.Timestamp
			}
		}
	}

	result.LastGrID = lastGrID
	result.Duration = time.Since(start)
	b.metrics.batchesProcessed.Add(float64(len(batches)))
	b.metrics.segmentsIndexed.Add(float64(result.SegmentsCreated))
	b.metrics.phatiqueSkipped.Add(float64(result.PhatiqueSkipped))
	return result, nil
}

// insertOutcome reports what insertTurn actually did, so Run can update its
// summary counters without insertTurn reaching into BulkResult directly.
type insertOutcome struct {
	created          bool
	personneCandidat bool
	projetCandidat   bool
}

// insertTurn applies the indexable filter, builds the vector, inserts the
// segment and any candidate entities. Returns a zero insertOutcome without
// error when the turn was phatic (skipped, not a failure).
func (b *BulkIndexer) insertTurn(ctx context.Context, turn Turn, rec models.ExtractorRecord, sourceFile, sourceOrigine string) (insertOutcome, error) {
	if !rec.Indexable {
		return insertOutcome{}, nil
	}

	seg := &models.Segment{
		SourceFile:        sourceFile,
		SourceNature:      "trace",
		SourceFormat:      "txt",
		SourceOrigine:     sourceOrigine,
		Auteur:            turn.Auteur,
		EmotionValence:    rec.EmotionValence,
		EmotionActivation: rec.EmotionActivation,
		TagsRoget:         rec.TagsRoget,
		Personnes:         rec.Personnes,
		Projets:           rec.Projets,
		Sujets:            rec.Sujets,
		Lieux:             rec.Lieux,
		ResumeTexte:       rec.ResumeTexte,
		GrID:              rec.GrID,
		ConfidenceScore:   rec.ConfidenceScore,
		StatutVerite:      models.TruthUnknown,
		ExtractorVersion:  "memoire-scribe",
		Modele:            "extractor",
		TokenStart:        turn.TokenStart,
		TokenEnd:          turn.TokenEnd(),
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.Replace(turn.Timestamp, "Z", "+00:00", 1))
	if err != nil {
		ts = time.Now().UTC()
	}
	seg.Timestamp = ts

	row := vectorengine.Row{
		EmotionValence:       rec.EmotionValence,
		EmotionActivation:    rec.EmotionActivation,
		PhysiqueEnergie:      rec.PhysiqueEnergie,
		PhysiqueStress:       rec.PhysiqueStress,
		CognitionCertitude:   rec.CognitionCertitude,
		CognitionComplexite:  rec.CognitionComplexite,
		CognitionAbstraction: rec.CognitionAbstraction,
		CommClarte:           rec.CommClarte,
		CommFormalite:        rec.CommFormalite,
		TagsRoget:            rec.TagsRoget,
		ResumeTexte:          rec.ResumeTexte,
		Personnes:            rec.Personnes,
		Lieux:                rec.Lieux,
		Projets:              rec.Projets,
		Sujets:               rec.Sujets,
	}
	seg.Vecteur = b.vecEngine.Generate(row)

	if err := b.segments.Create(ctx, seg); err != nil {
		return insertOutcome{}, fmt.Errorf("indexer: insert segment: %w", err)
	}

	outcome := insertOutcome{created: true}

	if rec.PersonneCandidat != "" {
		if err := b.candidates.Create(ctx, &models.Candidate{
			Kind:      models.CandidatePersonne,
			Nom:       rec.PersonneCandidat,
			SegmentID: seg.ID,
			Contexte:  truncate(rec.ResumeTexte, 200),
		}); err != nil {
			b.log.WithError(err).Warn("indexer: insert candidat personne")
		} else {
			outcome.personneCandidat = true
		}
	}
	if rec.ProjetCandidat != "" {
		if err := b.candidates.Create(ctx, &models.Candidate{
			Kind:      models.CandidateProjet,
			Nom:       rec.ProjetCandidat,
			SegmentID: seg.ID,
			Contexte:  truncate(rec.ResumeTexte, 200),
		}); err != nil {
			b.log.WithError(err).Warn("indexer: insert candidat projet")
		} else {
			outcome.projetCandidat = true
		}
	}

	return outcome, nil
}

func chunkTurns(turns []Turn, size int) [][]Turn {
	var batches [][]Turn
	for i := 0; i < len(turns); i += size {
		end := i + size
		if end > len(turns) {
			end = len(turns)
		}
		batches = append(batches, turns[i:end])
	}
	return batches
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
