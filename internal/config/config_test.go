package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCleanEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"MEMOIRE_DB_PATH", "MEMOIRE_FRAGMENT_DIR", "MEMOIRE_KNOWLEDGE_DIR",
		"MEMOIRE_TAXONOMY_PATH", "MEMOIRE_SOURCE_ORIGINE", "MEMOIRE_BACKEND_NAME",
		"MEMOIRE_BACKEND_URL", "EXTRACTOR_API_KEY", "MEMOIRE_BACKEND_MODEL",
		"MEMOIRE_BATCH_SIZE", "MEMOIRE_TOP_K", "MEMOIRE_MAX_ITERATIONS", "MEMOIRE_VERBOSE",
	}
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaultsWithNoFileOrEnv(t *testing.T) {
	withCleanEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverridesFileAndDefault(t *testing.T) {
	withCleanEnv(t)

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("db_path: from-file.db\ntop_k: 9\n"), 0o644))

	os.Setenv("MEMOIRE_DB_PATH", "from-env.db")
	t.Cleanup(func() { os.Unsetenv("MEMOIRE_DB_PATH") })

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath, "env var must win over the file")
	assert.Equal(t, 9, cfg.TopK, "file value must win over the struct default")
}

func TestLoadMissingFileErrors(t *testing.T) {
	withCleanEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
