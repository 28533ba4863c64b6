package indexer

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoire/internal/extractor"
	"memoire/internal/store"
	"memoire/internal/taxonomy"
	"memoire/internal/vectorengine"
)

type scriptedBackend struct {
	name      string
	responses []string
	i         int
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if b.i >= len(b.responses) {
		return b.responses[len(b.responses)-1], nil
	}
	r := b.responses[b.i]
	b.i++
	return r, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestBulkIndexer(t *testing.T, backend extractor.Backend, cfg BulkConfig) (*BulkIndexer, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	client := extractor.NewClient(backend, testLogger())
	segments := store.NewSegmentRepository(s)
	candidates := store.NewCandidateRepository(s)
	vecEngine := vectorengine.New(taxonomy.Empty())
	cfg.FragmentDir = t.TempDir()

	idx, err := NewBulkIndexer(client, segments, candidates, vecEngine, wordCountTokenizer{}, testLogger(), cfg)
	require.NoError(t, err)
	return idx, s
}

func TestBulkIndexerInsertsEachSignificantTurn(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		responses: []string{
			`[{"id":0,"tags_roget":["01-0010-0010"],"resume_texte":"premier"},` +
				`{"id":1,"tags_roget":["02-0020-0020"],"resume_texte":"second"}]`,
		},
	}
	idx, s := newTestBulkIndexer(t, backend, BulkConfig{BatchSize: 5, ParallelBatches: 1})

	text := "[2025-01-01T10:00:00.000Z] human: une longue premiere question ici\n" +
		"[2025-01-01T10:05:00.000Z] assistant: une longue reponse assez differente ici"

	result, err := idx.Run(context.Background(), "transcript.txt", "test", text)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EchangesParsed)
	assert.Equal(t, 2, result.SegmentsCreated)

	count, err := store.NewSegmentRepository(s).CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBulkIndexerSkipsNonIndexableTurns(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		responses: []string{
			`[{"id":0,"indexable":false,"resume_texte":"phatique"}]`,
		},
	}
	idx, _ := newTestBulkIndexer(t, backend, BulkConfig{BatchSize: 5, ParallelBatches: 1})

	text := "[2025-01-01T10:00:00.000Z] human: une phrase assez longue pour ne pas etre repliee"
	result, err := idx.Run(context.Background(), "transcript.txt", "test", text)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PhatiqueSkipped)
	assert.Equal(t, 0, result.SegmentsCreated)
}

func TestBulkIndexerSkipsInsignificantRepeatsWithinSameTurn(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		responses: []string{
			`[{"id":0,"tags_roget":["01-0010-0010"],"emotion_valence":0.1,"emotion_activation":0.5,"resume_texte":"un"},` +
				`{"id":1,"tags_roget":["01-0010-0010"],"emotion_valence":0.12,"emotion_activation":0.5,"resume_texte":"deux"}]`,
		},
	}
	idx, _ := newTestBulkIndexer(t, backend, BulkConfig{BatchSize: 5, ParallelBatches: 1})

	// Same timestamp and auteur so the significance filter, not the
	// timestamp/auteur-change rule, governs insertion of the second turn.
	text := "[2025-01-01T10:00:00.000Z] human: une premiere phrase assez longue ici\n" +
		"[2025-01-01T10:00:00.000Z] human: une deuxieme phrase assez longue ici"

	result, err := idx.Run(context.Background(), "transcript.txt", "test", text)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SegmentsCreated)
	assert.Equal(t, 1, result.InsignificantSkipped)
}

func TestBulkIndexerTracksLastGrID(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		responses: []string{
			`[{"id":0,"tags_roget":["01-0010-0010"],"resume_texte":"un","gr_id":3},` +
				`{"id":1,"tags_roget":["02-0020-0020"],"resume_texte":"deux","gr_id":7}]`,
		},
	}
	idx, _ := newTestBulkIndexer(t, backend, BulkConfig{BatchSize: 5, ParallelBatches: 1})

	text := "[2025-01-01T10:00:00.000Z] human: une longue premiere question ici\n" +
		"[2025-01-01T10:05:00.000Z] assistant: une longue reponse assez differente ici"

	result, err := idx.Run(context.Background(), "transcript.txt", "test", text)
	require.NoError(t, err)
	assert.EqualValues(t, 7, result.LastGrID)
}

func TestBulkIndexerWritesFragmentFile(t *testing.T) {
	backend := &scriptedBackend{name: "fake", responses: []string{`[{"id":0,"resume_texte":"x"}]`}}
	idx, _ := newTestBulkIndexer(t, backend, BulkConfig{BatchSize: 5, ParallelBatches: 1})

	text := "[2025-01-01T10:00:00.000Z] human: une phrase assez longue pour tester le fragment"
	result, err := idx.Run(context.Background(), "transcript.txt", "test", text)
	require.NoError(t, err)
	assert.NotEmpty(t, result.FragmentPath)
}
