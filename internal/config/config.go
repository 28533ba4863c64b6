// Package config loads the settings shared by the three command-line
// entrypoints (scribe, hermes, mnemosyne): storage paths, the extractor
// backend endpoint, and per-component tuning knobs. Mirrors
// internal/config's getEnv/Load pattern — env vars first, an optional YAML
// overlay on top, struct defaults underneath.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full set of settings a command needs to open the store,
// reach the extractor backend, and locate the fragment/knowledge trees on
// disk. Every field has a workable zero-friction default so a command can
// run with no flags and no config file at all.
type Config struct {
	DBPath        string `yaml:"db_path"`
	FragmentDir   string `yaml:"fragment_dir"`
	KnowledgeDir  string `yaml:"knowledge_dir"`
	TaxonomyPath  string `yaml:"taxonomy_path"`
	SourceOrigine string `yaml:"source_origine"`

	BackendName  string `yaml:"backend_name"`
	BackendURL   string `yaml:"backend_url"`
	BackendKey   string `yaml:"backend_key"`
	BackendModel string `yaml:"backend_model"`

	BatchSize     int  `yaml:"batch_size"`
	TopK          int  `yaml:"top_k"`
	MaxIterations int  `yaml:"max_iterations"`
	Verbose       bool `yaml:"verbose"`
}

// Default returns the baseline settings every command falls back to.
func Default() Config {
	return Config{
		DBPath:        "metadata.db",
		FragmentDir:   "echanges",
		KnowledgeDir:  "knowledge",
		SourceOrigine: "import",
		BackendName:   "local",
		BackendURL:    "http://localhost:8000/v1",
		BackendModel:  "gpt-4o-mini",
		BatchSize:     20,
		TopK:          5,
		MaxIterations: 5,
	}
}

// Load builds a Config from Default(), overlaid by yamlPath (if non-empty)
// and then by environment variables, so an explicit env var always wins
// over both the file and the built-in default.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", yamlPath, err)
		}
	}

	cfg.DBPath = getEnv("MEMOIRE_DB_PATH", cfg.DBPath)
	cfg.FragmentDir = getEnv("MEMOIRE_FRAGMENT_DIR", cfg.FragmentDir)
	cfg.KnowledgeDir = getEnv("MEMOIRE_KNOWLEDGE_DIR", cfg.KnowledgeDir)
	cfg.TaxonomyPath = getEnv("MEMOIRE_TAXONOMY_PATH", cfg.TaxonomyPath)
	cfg.SourceOrigine = getEnv("MEMOIRE_SOURCE_ORIGINE", cfg.SourceOrigine)
	cfg.BackendName = getEnv("MEMOIRE_BACKEND_NAME", cfg.BackendName)
	cfg.BackendURL = getEnv("MEMOIRE_BACKEND_URL", cfg.BackendURL)
	cfg.BackendKey = getEnv("EXTRACTOR_API_KEY", cfg.BackendKey)
	cfg.BackendModel = getEnv("MEMOIRE_BACKEND_MODEL", cfg.BackendModel)
	cfg.BatchSize = getIntEnv("MEMOIRE_BATCH_SIZE", cfg.BatchSize)
	cfg.TopK = getIntEnv("MEMOIRE_TOP_K", cfg.TopK)
	cfg.MaxIterations = getIntEnv("MEMOIRE_MAX_ITERATIONS", cfg.MaxIterations)
	cfg.Verbose = getBoolEnv("MEMOIRE_VERBOSE", cfg.Verbose)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
