package retriever

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func TestParseQueryExtractsExplicitTags(t *testing.T) {
	parsed := ParseQuery("discussion sur le tag 01-0010-0010 et MOSS", fixedNow())
	assert.Equal(t, []string{"01-0010-0010"}, parsed.TagsExplicites)
}

func TestParseQueryExtractsQuotedPersonName(t *testing.T) {
	parsed := ParseQuery(`qui a travaille avec "Marie Dubois" sur le projet`, fixedNow())
	assert.Contains(t, parsed.Personnes, "Marie Dubois")
}

func TestParseQueryExtractsCapitalizedPersonName(t *testing.T) {
	parsed := ParseQuery("est-ce que Francois a participe a la reunion", fixedNow())
	assert.Contains(t, parsed.Personnes, "Francois")
}

func TestParseQueryDropsStopWordsFromKeywords(t *testing.T) {
	parsed := ParseQuery("le projet de vectorisation et des tags Roget", fixedNow())
	assert.NotContains(t, parsed.MotsCles, "le")
	assert.NotContains(t, parsed.MotsCles, "des")
	assert.Contains(t, parsed.MotsCles, "projet")
}

func TestParseQueryLimitsKeywordsToFive(t *testing.T) {
	parsed := ParseQuery("alpha beta gamma delta epsilon zeta eta theta", fixedNow())
	assert.LessOrEqual(t, len(parsed.MotsCles), 5)
}

func TestParseQueryDetectsEmotionTarget(t *testing.T) {
	parsed := ParseQuery("je me sentais tres triste ce jour la", fixedNow())
	if assert.NotNil(t, parsed.EmotionCible) {
		assert.Less(t, parsed.EmotionCible.Valence, 0.0)
	}
}

func TestParseQueryNoEmotionTargetWhenAbsent(t *testing.T) {
	parsed := ParseQuery("discussion technique sur le serveur", fixedNow())
	assert.Nil(t, parsed.EmotionCible)
}

func TestParseQueryDetectsRelativeDateRange(t *testing.T) {
	parsed := ParseQuery("qu'est-ce qu'on a fait l'an dernier", fixedNow())
	if assert.NotNil(t, parsed.DateDebut) {
		assert.True(t, parsed.DateDebut.Before(fixedNow()))
	}
}
