package coherence

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoire/internal/models"
)

func TestDetectTrajectoiresSkipsShortContent(t *testing.T) {
	sb := newTestSbire(t)
	rf := NewReflexion(DefaultConfig(), sb, &scriptedLLM{}, testLogger())

	result := rf.Process(context.Background(), "trop court")
	assert.Equal(t, 0, result.TrajectoiresDetected)
}

func TestDetectTrajectoiresParsesLLMResponse(t *testing.T) {
	sb := newTestSbire(t)
	resp := `{"trajectoires": [{"ancien_concept": "SQL brut", "nouveau_concept": "Vector store", "type": "TRAJECTOIRE", "description": "migration", "confidence": 0.8}]}`
	rf := NewReflexion(DefaultConfig(), sb, &scriptedLLM{responses: []string{resp}}, testLogger())

	content := strings.Repeat("du contenu de conversation. ", 30)
	result := rf.Process(context.Background(), content)

	require.Equal(t, 1, result.TrajectoiresDetected)
	assert.Equal(t, models.EdgeTrajectoire, result.Trajectoires[0].Type)
}

func TestWeaveTrajectoiresCreatesEdgeWhenBothEndpointsFound(t *testing.T) {
	sb, segments := newTestSbireWithStore(t)
	ctx := context.Background()
	require.NoError(t, segments.Create(ctx, &models.Segment{SourceFile: "a.txt", ResumeTexte: "on utilisait sql brut partout"}))
	require.NoError(t, segments.Create(ctx, &models.Segment{SourceFile: "b.txt", ResumeTexte: "maintenant on utilise vector store"}))

	resp := `{"trajectoires": [{"ancien_concept": "sql", "nouveau_concept": "vector", "type": "GENEALOGIE"}]}`
	rf := NewReflexion(DefaultConfig(), sb, &scriptedLLM{responses: []string{resp}}, testLogger())

	content := strings.Repeat("du contenu de conversation. ", 30)
	result := rf.Process(ctx, content)

	require.Equal(t, 1, result.TrajectoiresDetected)
	assert.Equal(t, 1, result.LinksCreated)
}

func TestProposePiliersSkipsShortContent(t *testing.T) {
	sb := newTestSbire(t)
	rf := NewReflexion(DefaultConfig(), sb, &scriptedLLM{}, testLogger())

	piliers := rf.proposePiliers(context.Background(), "trop court", nil, &ReflexionResult{})
	assert.Nil(t, piliers)
}

func TestProposePiliersClampsImportanceAndCreatesPilier(t *testing.T) {
	sb := newTestSbire(t)
	resp := `{"piliers": [{"fait": "Serge vit a Laval", "categorie": "IDENTITE", "importance": 99}]}`
	rf := NewReflexion(DefaultConfig(), sb, &scriptedLLM{responses: []string{resp}}, testLogger())

	content := strings.Repeat("contenu riche pour declencher l'analyse des piliers. ", 30)
	result := &ReflexionResult{}
	piliers := rf.proposePiliers(context.Background(), content, nil, result)

	require.Len(t, piliers, 1)
	assert.Equal(t, 3, piliers[0].Importance)
	assert.Equal(t, models.PilierIdentite, piliers[0].Category)
}

func TestNormalizeEvolutionTypeDefaultsToTrajectoire(t *testing.T) {
	assert.Equal(t, models.EdgeTrajectoire, normalizeEvolutionType("n'importe quoi"))
	assert.Equal(t, models.EdgeGenealogie, normalizeEvolutionType("genealogie"))
	assert.Equal(t, models.EdgeEvolueVers, normalizeEvolutionType("EVOLUE_VERS"))
}
