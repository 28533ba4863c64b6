package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoire/internal/models"
)

func TestPilierCreateClampsImportance(t *testing.T) {
	s := openTestStore(t)
	repo := NewPilierRepository(s)
	ctx := context.Background()

	p := &models.Pilier{Category: models.PilierIdentite, Importance: 9, Fact: "aime le café"}
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, 3, p.Importance)
	assert.NotZero(t, p.ID)
}

func TestPilierByCategory(t *testing.T) {
	s := openTestStore(t)
	repo := NewPilierRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Pilier{Category: models.PilierTechnique, Fact: "utilise Go"}))
	require.NoError(t, repo.Create(ctx, &models.Pilier{Category: models.PilierValeur, Fact: "valorise l'honnêteté"}))

	technique, err := repo.ByCategory(ctx, models.PilierTechnique)
	require.NoError(t, err)
	require.Len(t, technique, 1)
	assert.Equal(t, "utilise Go", technique[0].Fact)
}

func TestPilierUpdateImportanceMissing(t *testing.T) {
	s := openTestStore(t)
	repo := NewPilierRepository(s)

	err := repo.UpdateImportance(context.Background(), 404, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPilierAllOrdersByImportance(t *testing.T) {
	s := openTestStore(t)
	repo := NewPilierRepository(s)
	ctx := context.Background()

	low := &models.Pilier{Category: models.PilierFait, Importance: 1, Fact: "détail mineur"}
	high := &models.Pilier{Category: models.PilierFait, Importance: 3, Fact: "fait central"}
	require.NoError(t, repo.Create(ctx, low))
	require.NoError(t, repo.Create(ctx, high))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, high.ID, all[0].ID)
}
