package coherence

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"memoire/internal/sbire"
)

// maxNotesSessions bounds the rolling notes file to its last N entries.
const maxNotesSessions = 50

// InjectionResult is the outcome of one Phase C pass.
type InjectionResult struct {
	Injections       int
	SegmentsInternal int
	NotesUpdated     int
	Errors           []string
}

// Injection feeds Phase A and Phase B findings back into the store as
// iris_internal segments — the mechanism that lets Iris "remember its own
// reflections" and closes the consciousness loop.
type Injection struct {
	cfg       Config
	sb        *sbire.Sbire
	notesPath string
	log       *logrus.Logger
}

// NewInjection builds the Phase C module. The rolling notes file is skipped
// entirely unless WithNotesFile sets a non-empty path.
func NewInjection(cfg Config, sb *sbire.Sbire, log *logrus.Logger) *Injection {
	return &Injection{cfg: cfg, sb: sb, log: log}
}

// WithNotesFile sets the path of the rolling session-notes file.
func (in *Injection) WithNotesFile(path string) *Injection {
	in.notesPath = path
	return in
}

// Process synthesizes and injects summaries of whatever Phase A / Phase B
// found. It is a no-op when neither phase produced anything.
func (in *Injection) Process(ctx context.Context, rect RectificationResult, refl ReflexionResult) InjectionResult {
	result := InjectionResult{}

	hasCorrections := rect.CorrectionsDetected > 0
	hasTrajectoires := refl.TrajectoiresDetected > 0
	hasPiliers := refl.PiliersProposed > 0

	if !hasCorrections && !hasTrajectoires && !hasPiliers {
		return result
	}

	if hasCorrections {
		in.injectCorrectionsSummary(ctx, rect, &result)
	}
	if hasTrajectoires {
		in.injectTrajectoiresSummary(ctx, refl, &result)
	}

	in.updateNotesFile(rect, refl, &result)

	return result
}

func (in *Injection) injectCorrectionsSummary(ctx context.Context, rect RectificationResult, result *InjectionResult) {
	if len(rect.Corrections) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("[Réflexion interne] Corrections mémorisées:")
	max := len(rect.Corrections)
	if max > 5 {
		max = 5
	}
	for _, c := range rect.Corrections[:max] {
		b.WriteByte('\n')
		if c.OldClaim != "" {
			fmt.Fprintf(&b, "- '%s' -> '%s'", c.OldClaim, c.NewClaim)
		} else {
			fmt.Fprintf(&b, "- Fait confirmé: '%s'", c.NewClaim)
		}
	}

	if in.cfg.DryRun {
		in.log.Debug("coherence: [dry-run] would create iris_internal segment for corrections")
		result.Injections++
		return
	}

	if id := in.sb.InsertSegmentInternal(ctx, b.String(), "mnemosyne_rectification", "iris_internal"); id != nil {
		result.SegmentsInternal++
		result.Injections++
	}
}

func (in *Injection) injectTrajectoiresSummary(ctx context.Context, refl ReflexionResult, result *InjectionResult) {
	if len(refl.Trajectoires) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("[Réflexion interne] Évolutions de pensée observées:")
	max := len(refl.Trajectoires)
	if max > 5 {
		max = 5
	}
	for _, t := range refl.Trajectoires[:max] {
		fmt.Fprintf(&b, "\n- [%s] %s -> %s", t.Type, t.Ancien, t.Nouveau)
	}

	if in.cfg.DryRun {
		in.log.Debug("coherence: [dry-run] would create iris_internal segment for trajectoires")
		result.Injections++
		return
	}

	if id := in.sb.InsertSegmentInternal(ctx, b.String(), "mnemosyne_reflexion", "iris_internal"); id != nil {
		result.SegmentsInternal++
		result.Injections++
	}
}

func (in *Injection) updateNotesFile(rect RectificationResult, refl ReflexionResult, result *InjectionResult) {
	if in.notesPath == "" {
		return
	}
	if rect.CorrectionsDetected == 0 && refl.TrajectoiresDetected == 0 {
		return
	}

	var note strings.Builder
	fmt.Fprintf(&note, "\n## Session %s\n\n", time.Now().UTC().Format("2006-01-02T15:04:05"))

	if len(rect.Corrections) > 0 {
		note.WriteString("### Corrections mémorisées\n")
		max := len(rect.Corrections)
		if max > 3 {
			max = 3
		}
		for _, c := range rect.Corrections[:max] {
			fmt.Fprintf(&note, "- %s\n", c.NewClaim)
		}
		note.WriteByte('\n')
	}

	if len(refl.Trajectoires) > 0 {
		note.WriteString("### Évolutions détectées\n")
		max := len(refl.Trajectoires)
		if max > 3 {
			max = 3
		}
		for _, t := range refl.Trajectoires[:max] {
			fmt.Fprintf(&note, "- %s -> %s\n", t.Ancien, t.Nouveau)
		}
		note.WriteByte('\n')
	}

	if len(refl.Piliers) > 0 {
		note.WriteString("### Piliers proposés\n")
		max := len(refl.Piliers)
		if max > 3 {
			max = 3
		}
		for _, p := range refl.Piliers[:max] {
			fmt.Fprintf(&note, "- [%s] %s\n", p.Category, p.Fact)
		}
		note.WriteByte('\n')
	}

	if in.cfg.DryRun {
		in.log.Debug("coherence: [dry-run] would append to session notes file")
		result.NotesUpdated++
		return
	}

	if err := appendSessionNote(in.notesPath, note.String()); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("notes file: %v", err))
		return
	}
	result.NotesUpdated++
}

// appendSessionNote appends a "## Session ..." block to the notes file,
// creating it if absent and trimming it to its last maxNotesSessions
// entries to bound its size.
func appendSessionNote(path, note string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}

	existing := "# Notes Mnémosyne\n\nRéflexions internes du système de cohérence mémorielle.\n"
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	}

	sections := strings.Split(existing, "\n## Session")
	if len(sections) > maxNotesSessions {
		kept := sections[len(sections)-(maxNotesSessions-1):]
		existing = sections[0] + "\n## Session" + strings.Join(kept, "\n## Session")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open notes file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(existing + note); err != nil {
		return fmt.Errorf("write notes file: %w", err)
	}
	return w.Flush()
}
