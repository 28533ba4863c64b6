package sbire

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoire/internal/models"
	"memoire/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestSbire(t *testing.T, fragmentDir string, w2v Word2Vec) (*Sbire, *store.SegmentRepository) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	segments := store.NewSegmentRepository(s)
	edges := store.NewEdgeRepository(s)
	piliers := store.NewPilierRepository(s)
	return New(segments, edges, piliers, fragmentDir, w2v, testLogger()), segments
}

func TestGrepFindsMatchNewestFirst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2026", "01"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2026", "02"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026", "01", "a.txt"), []byte("0|ancienne mention de trildasa\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026", "02", "b.txt"), []byte("12|nouvelle mention de trildasa\n"), 0o644))

	s, _ := newTestSbire(t, dir, nil)
	hits := s.Grep("trildasa", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, filepath.Join("2026", "02", "b.txt"), hits[0].File)
	assert.Equal(t, 12, hits[0].TokenStart)
	assert.Equal(t, 1, s.Stats().GrepExecutes)
}

func TestGrepInvalidPatternReturnsNil(t *testing.T) {
	s, _ := newTestSbire(t, t.TempDir(), nil)
	assert.Nil(t, s.Grep("(unclosed", 10))
}

func TestSQLFindsSegmentByResume(t *testing.T) {
	s, segments := newTestSbire(t, "", nil)
	require.NoError(t, segments.Create(context.Background(), &models.Segment{
		SourceFile: "a.txt", ResumeTexte: "discussion sur le vecteur trildasa",
	}))

	hits := s.SQL(context.Background(), "trildasa", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, "discussion sur le vecteur trildasa", hits[0].ResumeTexte)
	assert.Equal(t, 1, s.Stats().SQLExecutes)
}

type fakeWord2Vec struct {
	terms []string
	err   error
}

func (f fakeWord2Vec) Expand(query string, topN int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.terms, nil
}

func TestWord2VecDegradesToSQLWithoutModel(t *testing.T) {
	s, segments := newTestSbire(t, "", nil)
	require.NoError(t, segments.Create(context.Background(), &models.Segment{
		SourceFile: "a.txt", ResumeTexte: "parle de vecteurs",
	}))

	hits := s.Word2VecSearch(context.Background(), "vecteurs", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, s.Stats().Word2VecExecutes)
}

func TestWord2VecExpandsAndDedupes(t *testing.T) {
	s, segments := newTestSbire(t, "", fakeWord2Vec{terms: []string{"trildasa"}})
	require.NoError(t, segments.Create(context.Background(), &models.Segment{SourceFile: "a.txt", ResumeTexte: "vecteurs et trildasa"}))

	hits := s.Word2VecSearch(context.Background(), "vecteurs", 10)
	require.Len(t, hits, 1)
}

func TestWord2VecFallsBackToSQLOnExpandError(t *testing.T) {
	s, segments := newTestSbire(t, "", fakeWord2Vec{err: ErrModelUnavailable})
	require.NoError(t, segments.Create(context.Background(), &models.Segment{SourceFile: "a.txt", ResumeTexte: "sujet rare"}))

	hits := s.Word2VecSearch(context.Background(), "rare", 10)
	require.Len(t, hits, 1)
}

func TestUpdateStatutVeriteMarksSegment(t *testing.T) {
	s, segments := newTestSbire(t, "", nil)
	seg := &models.Segment{SourceFile: "a.txt"}
	require.NoError(t, segments.Create(context.Background(), seg))

	ok := s.UpdateStatutVerite(context.Background(), seg.ID, models.TruthRefuted)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Stats().UpdatesStatut)

	got, err := segments.GetByID(context.Background(), seg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TruthRefuted, got.StatutVerite)
}

func TestInsertEdgeDefaultsWeight(t *testing.T) {
	s, segments := newTestSbire(t, "", nil)
	a := &models.Segment{SourceFile: "a.txt"}
	b := &models.Segment{SourceFile: "b.txt"}
	require.NoError(t, segments.Create(context.Background(), a))
	require.NoError(t, segments.Create(context.Background(), b))

	ok := s.InsertEdge(context.Background(), a.ID, b.ID, models.EdgeCorrigePar, "{}", 0)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Stats().InsertsEdge)
}

func TestInsertPilierClampsImportanceAndReturnsID(t *testing.T) {
	s, _ := newTestSbire(t, "", nil)
	id := s.InsertPilier(context.Background(), "Serge vit a Laval", models.PilierIdentite, 99, nil)
	require.NotNil(t, id)
	assert.Equal(t, 1, s.Stats().InsertsPilier)

	all, err := s.piliers.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].Importance)
}

func TestInsertSegmentInternalDefaultsAuthor(t *testing.T) {
	s, segments := newTestSbire(t, "", nil)
	id := s.InsertSegmentInternal(context.Background(), "resume interne", "mnemosyne_rectification", "")
	require.NotNil(t, id)

	seg, err := segments.GetByID(context.Background(), *id)
	require.NoError(t, err)
	assert.Equal(t, models.Author("iris_internal"), seg.Auteur)
	assert.Equal(t, models.TruthValidated, seg.StatutVerite)
	assert.Equal(t, 1, s.Stats().InsertsSegment)
}

func TestCheckSegmentExists(t *testing.T) {
	s, segments := newTestSbire(t, "", nil)
	seg := &models.Segment{SourceFile: "a.txt"}
	require.NoError(t, segments.Create(context.Background(), seg))

	assert.True(t, s.CheckSegmentExists(context.Background(), seg.ID))
	assert.False(t, s.CheckSegmentExists(context.Background(), seg.ID+999))
}

func TestExecuteDispatchesByMandateType(t *testing.T) {
	s, segments := newTestSbire(t, "", nil)
	require.NoError(t, segments.Create(context.Background(), &models.Segment{SourceFile: "a.txt", ResumeTexte: "dispatch test"}))

	hits := s.Execute(context.Background(), models.Mandat{Type: models.MandatSQL, Query: "dispatch", MaxResults: 5})
	require.Len(t, hits, 1)

	unknown := s.Execute(context.Background(), models.Mandat{Type: models.MandatType("bogus")})
	assert.Nil(t, unknown)
}
