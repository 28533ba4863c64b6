// hermes runs one retrieval query against the metadata store: parses the
// query, generates a QueryProfile via the configured LLM backend (falling
// back to defaults if that fails), and prints the ranked, formatted context
// a conversational front-end would receive back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"memoire/internal/config"
	"memoire/internal/extractor"
	"memoire/internal/models"
	"memoire/internal/queryprofile"
	"memoire/internal/retriever"
	"memoire/internal/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("MEMOIRE_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "hermes: %v\n", err)
		os.Exit(1)
	}

	var (
		dbPath       string
		query        string
		textBaseDir  string
		topK         int
		noProfile    bool
		backendURL   string
		backendKey   string
		backendModel string
		jsonOutput   bool
		verbose      bool
	)

	flag.StringVar(&dbPath, "db", cfg.DBPath, "path to the metadata SQLite database")
	flag.StringVar(&query, "query", "", "natural-language query")
	flag.StringVar(&textBaseDir, "fragment-dir", cfg.FragmentDir, "root directory the raw-text fallback scan runs over")
	flag.IntVar(&topK, "top-k", cfg.TopK, "maximum results to return")
	flag.BoolVar(&noProfile, "no-profile", false, "skip QueryProfile generation and use baseline default weights")
	flag.StringVar(&backendURL, "backend-url", cfg.BackendURL, "OpenAI-compatible base URL for the QueryProfile generator")
	flag.StringVar(&backendKey, "backend-key", cfg.BackendKey, "API key for the QueryProfile generator's backend")
	flag.StringVar(&backendModel, "backend-model", cfg.BackendModel, "model name for the QueryProfile generator's backend")
	flag.BoolVar(&jsonOutput, "json", false, "output the result as JSON")
	flag.BoolVar(&verbose, "verbose", cfg.Verbose, "enable debug logging")
	flag.Parse()

	if query == "" {
		fmt.Fprintln(os.Stderr, "hermes: -query is required")
		os.Exit(1)
	}

	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	s, err := store.Open(dbPath)
	if err != nil {
		log.WithError(err).Fatal("hermes: open store")
	}
	defer s.Close()

	segments := store.NewSegmentRepository(s)
	r := retriever.NewRetriever(segments, textBaseDir, log)

	ctx := context.Background()
	var profile *models.QueryProfile
	if !noProfile {
		backend := extractor.NewHTTPBackend("queryprofile", backendURL, backendKey, backendModel)
		gen := queryprofile.NewLLMGenerator(backend, log)
		p := gen.Generate(ctx, query)
		profile = &p
	}

	result, err := r.Run(ctx, query, profile, retriever.RunOptions{TopK: topK, FormatContext: true})
	if err != nil {
		log.WithError(err).Fatal("hermes: run")
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("count=%d fallback=%t profile=%s\n\n%s\n",
		result.Count, result.Fallback, result.ProfileUsed.Source, result.FormattedContext)
}
