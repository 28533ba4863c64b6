package toolsurface

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
	"memoire/internal/retriever"
	"memoire/internal/sbire"
	"memoire/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.SegmentRepository) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	segments := store.NewSegmentRepository(s)
	edges := store.NewEdgeRepository(s)
	piliers := store.NewPilierRepository(s)
	log := testLogger()

	textDir := t.TempDir()
	knowledgeDir := t.TempDir()

	r := retriever.NewRetriever(segments, textDir, log)
	sb := sbire.New(segments, edges, piliers, textDir, nil, log)

	return New(r, sb, segments, edges, piliers, textDir, knowledgeDir, log), segments
}

func TestDispatchUnknownCommandListsAllowed(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), "do_the_thing", nil)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "do_the_thing")
}

func TestDispatchResolvesAliasWithDefaults(t *testing.T) {
	canonical, defaults, err := resolve("search_segments")
	require.NoError(t, err)
	assert.Equal(t, CmdSearchFiles, canonical)
	assert.Equal(t, "week", defaults["scope"])
}

func TestSearchMemoryRequiresQuery(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), "search_memory", map[string]any{})
	assert.Equal(t, "error", resp.Status)
}

func TestSearchMemoryReturnsIndexedSegment(t *testing.T) {
	d, segments := newTestDispatcher(t)
	ctx := context.Background()
	require.NoError(t, segments.Create(ctx, &models.Segment{
		SourceFile:  "a.txt",
		ResumeTexte: "discussion sur le projet Phoenix",
		Personnes:   []string{"Marie"},
	}))

	resp := d.Dispatch(ctx, "search_memory", map[string]any{"query": "Phoenix", "top_k": 5})
	require.Equal(t, "success", resp.Status)
	result, ok := resp.Data.(SearchMemoryResult)
	require.True(t, ok)
	assert.GreaterOrEqual(t, result.Count, 0)
}

func TestSearchFilesFindsFragmentLine(t *testing.T) {
	d, _ := newTestDispatcher(t)
	path := filepath.Join(d.textBaseDir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("0|bonjour le monde\n5|au revoir"), 0o644))

	resp := d.Dispatch(context.Background(), "search_files", map[string]any{"query": "bonjour", "scope": "all"})
	require.Equal(t, "success", resp.Status)
	result := resp.Data.(SearchFilesResult)
	require.Equal(t, 1, result.Count)
	assert.Contains(t, result.Results[0].Snippet, "bonjour")
}

func TestKnowledgeRoundTripsAppendAndRead(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, "append_knowledge", map[string]any{"file": "notes.md", "content": "premiere entree"})
	require.Equal(t, "success", resp.Status)

	resp = d.Dispatch(ctx, "read_knowledge", map[string]any{"file": "notes.md"})
	require.Equal(t, "success", resp.Status)
	assert.Contains(t, resp.Data.(KnowledgeFileResult).Content, "premiere entree")
}

func TestReadKnowledgeMissingFileListsAvailable(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()
	require.Equal(t, "success", d.Dispatch(ctx, "append_knowledge",
		map[string]any{"file": "a.md", "content": "x"}).Status)

	resp := d.Dispatch(ctx, "read_knowledge", map[string]any{"file": "missing.md"})
	require.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "a.md")
}

func TestUpdateKnowledgePreservesHeaderAndOtherSections(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()
	path := filepath.Join(d.knowledgeDir, "profile.md")
	initial := "# Profil\n\n## Identite\n\nancien fait\n\n## Projets\n\nprojet X\n"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	resp := d.Dispatch(ctx, "update_knowledge", map[string]any{
		"file": "profile.md", "section": "Identite", "content": "nouveau fait",
	})
	require.Equal(t, "success", resp.Status)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# Profil")
	assert.Contains(t, content, "## Projets")
	assert.Contains(t, content, "projet X")
	assert.Contains(t, content, "nouveau fait")
	assert.NotContains(t, content, "ancien fait")
}

func TestExploreLinksWalksEdgesBothDirections(t *testing.T) {
	d, segments := newTestDispatcher(t)
	ctx := context.Background()

	a := &models.Segment{SourceFile: "a.txt", ResumeTexte: "ancien"}
	b := &models.Segment{SourceFile: "b.txt", ResumeTexte: "nouveau"}
	require.NoError(t, segments.Create(ctx, a))
	require.NoError(t, segments.Create(ctx, b))
	require.NoError(t, d.edges.Create(ctx, &models.Edge{SourceID: a.ID, TargetID: b.ID, Type: models.EdgeTrajectoire}))

	resp := d.Dispatch(ctx, "explore_links", map[string]any{"segment_id": int(a.ID), "depth": 1, "max_results": 10})
	require.Equal(t, "success", resp.Status)
	result := resp.Data.(ExploreLinksResult)
	require.Len(t, result.Links, 1)
	assert.Equal(t, b.ID, result.Links[0].SegmentID)
	assert.Equal(t, "out", result.Links[0].Direction)
}

func TestInspectMemorySegmentsFiltersByWhitelistedColumn(t *testing.T) {
	d, segments := newTestDispatcher(t)
	ctx := context.Background()
	require.NoError(t, segments.Create(ctx, &models.Segment{SourceFile: "a.txt", SourceNature: "reflexion"}))
	require.NoError(t, segments.Create(ctx, &models.Segment{SourceFile: "b.txt", SourceNature: "conversation"}))

	resp := d.Dispatch(ctx, "inspect_memory", map[string]any{
		"database": "segments",
		"filters":  map[string]any{"source_nature": "reflexion"},
		"limit":    10,
	})
	require.Equal(t, "success", resp.Status)
	result := resp.Data.(InspectMemoryResult)
	assert.Equal(t, 1, result.Count)
}

func TestInspectMemoryRejectsNonWhitelistedFilter(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), "inspect_memory", map[string]any{
		"database": "segments",
		"filters":  map[string]any{"resume_texte": "drop table"},
	})
	assert.Equal(t, "error", resp.Status)
}

func TestInspectMemoryUnknownDatabase(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), "inspect_memory", map[string]any{"database": "frogs"})
	assert.Equal(t, "error", resp.Status)
}
