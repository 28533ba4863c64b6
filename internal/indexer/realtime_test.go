package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoire/internal/extractor"
	"memoire/internal/models"
	"memoire/internal/store"
	"memoire/internal/taxonomy"
	"memoire/internal/vectorengine"
)

func newTestRealtimeIndexer(t *testing.T, backend extractor.Backend, cfg RealtimeConfig) (*RealtimeIndexer, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	client := extractor.NewClient(backend, testLogger())
	segments := store.NewSegmentRepository(s)
	vecEngine := vectorengine.New(taxonomy.Empty())

	idx := NewRealtimeIndexer(client, segments, vecEngine, testLogger(), cfg)
	return idx, s
}

func TestRealtimeIndexerInsertsEveryIndexableItemInOrder(t *testing.T) {
	backend := &scriptedBackend{
		name: "fake",
		responses: []string{
			`[{"id":0,"resume_texte":"premier"}]`,
			`[{"id":0,"resume_texte":"second"}]`,
		},
	}
	idx, s := newTestRealtimeIndexer(t, backend, DefaultRealtimeConfig())

	var processedOrder []string
	done := make(chan struct{}, 2)
	idx.OnProcessed = func(item RealtimeItem, seg *models.Segment) {
		if seg != nil {
			processedOrder = append(processedOrder, seg.ResumeTexte)
		}
		done <- struct{}{}
	}

	idx.Start(context.Background())
	idx.Put("2025-01-01T10:00:00.000Z", models.AuthorHuman, "bonjour", 0)
	idx.Put("2025-01-01T10:00:05.000Z", models.AuthorAssistant, "salut", 10)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for realtime processing")
		}
	}
	idx.Stop(2 * time.Second)

	require.Len(t, processedOrder, 2)
	assert.Equal(t, []string{"premier", "second"}, processedOrder)

	count, err := store.NewSegmentRepository(s).CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRealtimeIndexerSkipsNonIndexableWithoutInserting(t *testing.T) {
	backend := &scriptedBackend{
		name:      "fake",
		responses: []string{`[{"id":0,"indexable":false,"resume_texte":"phatique"}]`},
	}
	idx, s := newTestRealtimeIndexer(t, backend, DefaultRealtimeConfig())

	done := make(chan struct{}, 1)
	var gotSeg *models.Segment
	idx.OnProcessed = func(item RealtimeItem, seg *models.Segment) {
		gotSeg = seg
		done <- struct{}{}
	}

	idx.Start(context.Background())
	idx.Put("2025-01-01T10:00:00.000Z", models.AuthorHuman, "bonjour", 0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for realtime processing")
	}
	idx.Stop(2 * time.Second)

	assert.Nil(t, gotSeg)
	count, err := store.NewSegmentRepository(s).CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRealtimeIndexerStopDrainsPendingItems(t *testing.T) {
	backend := &scriptedBackend{name: "fake", responses: []string{`[{"id":0,"resume_texte":"x"}]`}}
	idx, _ := newTestRealtimeIndexer(t, backend, DefaultRealtimeConfig())

	idx.Start(context.Background())
	for i := 0; i < 3; i++ {
		idx.Put("2025-01-01T10:00:00.000Z", models.AuthorHuman, "bonjour", 0)
	}
	idx.Stop(5 * time.Second)

	assert.Equal(t, 0, idx.Pending())
}
