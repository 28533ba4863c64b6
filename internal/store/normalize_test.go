package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSearchStripsAccentsAndLowercases(t *testing.T) {
	assert.Equal(t, "francois", NormalizeSearch("François"))
	assert.Equal(t, "melanie", NormalizeSearch("MÉLANIE"))
}

func TestNormalizeSearchJoinsJSONArray(t *testing.T) {
	assert.Equal(t, "francois melanie", NormalizeSearch(`["François", "Mélanie"]`))
}

func TestNormalizeSearchEmptyAndNonJSON(t *testing.T) {
	assert.Equal(t, "", NormalizeSearch(""))
	assert.Equal(t, "bonjour", NormalizeSearch("Bonjour"))
}

func TestNormalizeSearchIdempotent(t *testing.T) {
	once := NormalizeSearch("Écriture café")
	twice := NormalizeSearch(once)
	assert.Equal(t, once, twice)
}

func TestNormalizeSearchSQLFunctionRegistered(t *testing.T) {
	s := openTestStore(t)
	var got string
	err := s.DB().QueryRow(`SELECT normalize_search(?)`, "François").Scan(&got)
	require.NoError(t, err)
	assert.Equal(t, "francois", got)
}
