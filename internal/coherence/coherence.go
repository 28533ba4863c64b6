// Package coherence implements Mnémosyne, the Coherence Agent that keeps the
// memory store internally consistent: it detects and marks factual errors
// (Rectification), weaves evolutions of thought into typed edges and
// proposed long-lived facts (Reflection), and feeds its own findings back
// into the store as searchable memory (Injection) — the "short circuit"
// that lets the indexing/retrieval loop notice itself.
package coherence

import (
	"context"

	"github.com/sirupsen/logrus"

	"memoire/internal/observability"
	"memoire/internal/sbire"
)

// LLM is the minimal surface the three phases need from a backend: a single
// free-form completion call. Any extractor.Backend satisfies this.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config governs one pass of the Coherence Agent: the backend model name,
// dry-run/verbose flags, and the iteration budget shared by every phase's
// search loop.
type Config struct {
	Model         string
	MaxIterations int
	DryRun        bool
	Verbose       bool
	// NotesFile, if set, is the rolling session-notes markdown file the
	// injection phase appends to and trims to its last maxNotesSessions
	// entries.
	NotesFile string
}

// DefaultConfig returns sane bounds for a single batch pass.
func DefaultConfig() Config {
	return Config{MaxIterations: 5}
}

// Agent runs the three-phase pass over one just-indexed source.
type Agent struct {
	cfg       Config
	sb        *sbire.Sbire
	llm       LLM
	log       *logrus.Logger
	rectifier *Rectification
	reflector *Reflexion
	injector  *Injection
	tracer    *observability.PhaseTracer
}

// NewAgent wires the three phases over a shared Sbire and LLM backend.
func NewAgent(cfg Config, sb *sbire.Sbire, llm LLM, log *logrus.Logger) *Agent {
	sb.SetVerbose(cfg.Verbose)
	injector := NewInjection(cfg, sb, log)
	if cfg.NotesFile != "" {
		injector = injector.WithNotesFile(cfg.NotesFile)
	}
	return &Agent{
		cfg:       cfg,
		sb:        sb,
		llm:       llm,
		log:       log,
		rectifier: NewRectification(cfg, sb, llm, log),
		reflector: NewReflexion(cfg, sb, llm, log),
		injector:  injector,
		tracer:    observability.GetTracer(),
	}
}

// WithTracer overrides the Agent's PhaseTracer, e.g. with one built from
// NewPhaseTracer(&observability.TracerConfig{ExporterType: observability.ExporterConsole, ...})
// to actually export spans instead of discarding them.
func (a *Agent) WithTracer(tracer *observability.PhaseTracer) *Agent {
	a.tracer = tracer
	return a
}

// PassResult bundles the outcome of every phase that ran, for the caller to
// log or assert on.
type PassResult struct {
	Rectification RectificationResult
	Reflexion     ReflexionResult
	Injection     InjectionResult
}

// Mode selects which phases a pass runs: rectification only, reflexion
// only, or both ("complet").
type Mode string

const (
	ModeRectification Mode = "rectification"
	ModeReflexion     Mode = "reflexion"
	ModeComplete      Mode = "complet"
)

// Run executes the requested phases over one piece of just-indexed content
// and then, in every mode, runs the injection phase, which writes a summary
// of what was found back into the store as iris_internal segments (nothing
// when the phases found nothing).
func (a *Agent) Run(ctx context.Context, mode Mode, content string) PassResult {
	var result PassResult

	if mode == ModeRectification || mode == ModeComplete {
		spanCtx, span := a.tracer.StartPhase(ctx, "rectification", string(mode))
		result.Rectification = a.rectifier.Process(spanCtx, content)
		a.tracer.EndPhase(span, result.Rectification.CorrectionsDetected)
	}
	if mode == ModeReflexion || mode == ModeComplete {
		spanCtx, span := a.tracer.StartPhase(ctx, "reflexion", string(mode))
		result.Reflexion = a.reflector.Process(spanCtx, content)
		a.tracer.EndPhase(span, result.Reflexion.TrajectoiresDetected+result.Reflexion.PiliersProposed)
	}

	spanCtx, span := a.tracer.StartPhase(ctx, "injection", string(mode))
	result.Injection = a.injector.Process(spanCtx, result.Rectification, result.Reflexion)
	a.tracer.EndPhase(span, result.Injection.Injections)
	return result
}
