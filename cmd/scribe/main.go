// scribe runs the bulk indexing path over a raw transcript file: parses
// turns, writes the tokenized fragment mirror, batch-extracts metadata and
// inserts segments.
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
	"memoire/internal/indexer"
	"memoire/internal/store"
	"memoire/internal/taxonomy"
	"memoire/internal/vectorengine"
)

func main() {
	cfg, err := config.Load(os.Getenv("MEMOIRE_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}

	var (
		dbPath        string
		inputPath     string
		sourceOrigine string
		fragmentDir   string
		taxonomyPath  string
		backendName   string
		backendURL    string
		backendKey    string
		backendModel  string
		batchSize     int
		jsonOutput    bool
		verbose       bool
	)

	flag.StringVar(&dbPath, "db", cfg.DBPath, "path to the metadata SQLite database")
	flag.StringVar(&inputPath, "file", "", "raw transcript file to index")
	flag.StringVar(&sourceOrigine, "source-origine", cfg.SourceOrigine, "source_origine recorded on every inserted segment")
	flag.StringVar(&fragmentDir, "fragment-dir", cfg.FragmentDir, "root directory the tokenized fragment mirror is written under")
	flag.StringVar(&taxonomyPath, "taxonomy", cfg.TaxonomyPath, "path to the Roget-style taxonomy document (empty: vector engine degrades to scalar positions only)")
	flag.StringVar(&backendName, "backend", cfg.BackendName, "extractor backend name")
	flag.StringVar(&backendURL, "backend-url", cfg.BackendURL, "OpenAI-compatible base URL for the extractor backend")
	flag.StringVar(&backendKey, "backend-key", cfg.BackendKey, "API key for the extractor backend")
	flag.StringVar(&backendModel, "backend-model", cfg.BackendModel, "model name for the extractor backend")
	flag.IntVar(&batchSize, "batch-size", cfg.BatchSize, "turns per extractor batch")
	flag.BoolVar(&jsonOutput, "json", false, "output the result as JSON")
	flag.BoolVar(&verbose, "verbose", cfg.Verbose, "enable debug logging")
	flag.Parse()

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "scribe: -file is required")
		os.Exit(1)
	}

	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	rawText, err := os.ReadFile(inputPath)
	if err != nil {
		log.WithError(err).Fatal("scribe: read input file")
	}

	s, err := store.Open(dbPath)
	if err != nil {
		log.WithError(err).Fatal("scribe: open store")
	}
	defer s.Close()

	segments := store.NewSegmentRepository(s)
	candidates := store.NewCandidateRepository(s)

	tax := taxonomy.Empty()
	if taxonomyPath != "" {
		tax, err = taxonomy.Load(taxonomyPath)
		if err != nil {
			log.WithError(err).Warn("scribe: load taxonomy, degrading to scalar positions only")
			tax = taxonomy.Empty()
		}
	}
	backend := extractor.NewHTTPBackend(backendName, backendURL, backendKey, backendModel)
	client := extractor.NewClient(backend, log)

	bulkCfg := indexer.DefaultBulkConfig()
	bulkCfg.FragmentDir = fragmentDir
	bulkCfg.BatchSize = batchSize

	bi, err := indexer.NewBulkIndexer(client, segments, candidates, vectorengine.New(tax), nil, log, bulkCfg)
	if err != nil {
		log.WithError(err).Fatal("scribe: build bulk indexer")
	}

	result, err := bi.Run(context.Background(), inputPath, sourceOrigine, string(rawText))
	if err != nil {
		log.WithError(err).Fatal("scribe: run")
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("echanges=%d segments=%d phatique=%d insignificant=%d candidats_personnes=%d candidats_projets=%d gr_id=%d duration=%s\n",
		result.EchangesParsed, result.SegmentsCreated, result.PhatiqueSkipped, result.InsignificantSkipped,
		result.CandidatesPersonnes, result.CandidatesProjets, result.LastGrID, result.Duration)
}
