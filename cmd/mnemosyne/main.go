// mnemosyne runs one Coherence Agent pass over a just-indexed fragment
// file: rectification, reflection, or both ("complet"), driven by
// --file, --mode, --dry-run, --max-iterations and --verbose flags.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"memoire/internal/coherence"
	"memoire/internal/config"
	"memoire/internal/extractor"
	"memoire/internal/sbire"
	"memoire/internal/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("MEMOIRE_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mnemosyne: %v\n", err)
		os.Exit(1)
	}

	var (
		dbPath        string
		filePath      string
		mode          string
		dryRun        bool
		maxIterations int
		fragmentDir   string
		notesPath     string
		backendURL    string
		backendKey    string
		backendModel  string
		jsonOutput    bool
		verbose       bool
	)

	flag.StringVar(&dbPath, "db", cfg.DBPath, "path to the metadata SQLite database")
	flag.StringVar(&filePath, "file", "", "transcript fragment to run the pass over, relative to -fragment-dir")
	flag.StringVar(&mode, "mode", "complet", "one of: rectification, reflexion, complet")
	flag.BoolVar(&dryRun, "dry-run", false, "log intended mutations without performing them")
	flag.IntVar(&maxIterations, "max-iterations", cfg.MaxIterations, "mandat refinement budget per phase")
	flag.StringVar(&fragmentDir, "fragment-dir", cfg.FragmentDir, "root directory the tokenized fragment mirror lives under")
	flag.StringVar(&notesPath, "notes-file", "", "optional rolling notes file updated by the injection phase")
	flag.StringVar(&backendURL, "backend-url", cfg.BackendURL, "OpenAI-compatible base URL for the Coherence Agent's LLM")
	flag.StringVar(&backendKey, "backend-key", cfg.BackendKey, "API key for the Coherence Agent's LLM backend")
	flag.StringVar(&backendModel, "backend-model", cfg.BackendModel, "model name for the Coherence Agent's LLM backend")
	flag.BoolVar(&jsonOutput, "json", false, "output the result as JSON")
	flag.BoolVar(&verbose, "verbose", cfg.Verbose, "enable debug logging and Sbire mandat tracing")
	flag.Parse()

	if filePath == "" {
		fmt.Fprintln(os.Stderr, "mnemosyne: -file is required")
		os.Exit(1)
	}

	var runMode coherence.Mode
	switch mode {
	case "rectification":
		runMode = coherence.ModeRectification
	case "reflexion":
		runMode = coherence.ModeReflexion
	case "complet":
		runMode = coherence.ModeComplete
	default:
		fmt.Fprintf(os.Stderr, "mnemosyne: unknown -mode %q (allowed: rectification, reflexion, complet)\n", mode)
		os.Exit(1)
	}

	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	readPath := filePath
	if !filepath.IsAbs(readPath) {
		readPath = filepath.Join(fragmentDir, readPath)
	}
	content, err := os.ReadFile(readPath)
	if err != nil {
		log.WithError(err).Fatal("mnemosyne: read file")
	}

	s, err := store.Open(dbPath)
	if err != nil {
		log.WithError(err).Fatal("mnemosyne: open store")
	}
	defer s.Close()

	segments := store.NewSegmentRepository(s)
	edges := store.NewEdgeRepository(s)
	piliers := store.NewPilierRepository(s)

	backend := extractor.NewHTTPBackend("mnemosyne", backendURL, backendKey, backendModel)
	sb := sbire.New(segments, edges, piliers, fragmentDir, nil, log)

	agentCfg := coherence.DefaultConfig()
	agentCfg.DryRun = dryRun
	agentCfg.MaxIterations = maxIterations
	agentCfg.Verbose = verbose
	agentCfg.NotesFile = notesPath

	agent := coherence.NewAgent(agentCfg, sb, backend, log)
	result := agent.Run(context.Background(), runMode, string(content))

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("corrections_detected=%d segments_rectified=%d trajectoires_detected=%d liens_crees=%d injections=%d\n",
		result.Rectification.CorrectionsDetected, result.Rectification.SegmentsRectified,
		result.Reflexion.TrajectoiresDetected, result.Reflexion.LinksCreated, result.Injection.Injections)
}
