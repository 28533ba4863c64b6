package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"memoire/internal/models"
)

// Client drives one Backend through the batch prompt / repair / retry
// pipeline and tracks the last successfully extracted record as the
// last-known-good fallback.
type Client struct {
	backend Backend
	log     *logrus.Logger

	MaxRetries int
	RetryDelay time.Duration

	lastGood *models.ExtractorRecord
}

// NewClient builds a Client around a Backend with a conservative default
// retry posture: 3 attempts, 25s base backoff.
func NewClient(backend Backend, log *logrus.Logger) *Client {
	return &Client{
		backend:    backend,
		log:        log,
		MaxRetries: 3,
		RetryDelay: 25 * time.Second,
	}
}

// Extract is the single-segment convenience built on ExtractBatch.
func (c *Client) Extract(ctx context.Context, text string) (models.ExtractorRecord, error) {
	records, err := c.ExtractBatch(ctx, []string{text})
	if err != nil {
		return models.ExtractorRecord{}, err
	}
	return records[0], nil
}

// ExtractBatch sends texts to the backend as one batch prompt, repairs and
// validates the response, and returns exactly len(texts) records. A record
// the pipeline could not recover is the last-known-good record overlaid
// with confidence_score 0.5, never a hard error — the Indexer must never
// abort a run on a per-segment failure.
func (c *Client) ExtractBatch(ctx context.Context, texts []string) ([]models.ExtractorRecord, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	content, err := c.completeWithRetry(ctx, buildBatchPrompt(texts))
	if err != nil {
		c.log.WithError(err).WithField("backend", c.backend.Name()).
			Warn("extractor: batch completion exhausted retries, falling back to last-known-good")
		records := make([]models.ExtractorRecord, len(texts))
		for i := range records {
			records[i] = models.FailedRecord(c.lastGood)
		}
		return records, nil
	}

	batch := parseBatchResponse(content, len(texts))

	out := make([]models.ExtractorRecord, len(texts))
	for i, w := range batch.records {
		if batch.placeholder[i] {
			out[i] = models.FailedRecord(c.lastGood)
			continue
		}
		rec := toModelRecord(w)
		out[i] = rec
		good := rec
		c.lastGood = &good
	}
	return out, nil
}

// completeWithRetry retries transport failures up to MaxRetries, giving
// rate-limited responses a longer, attempt-scaled backoff.
func (c *Client) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		content, err := c.backend.Complete(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		wait := c.RetryDelay
		if rl, ok := err.(RateLimited); ok && rl.RateLimited() {
			wait = c.RetryDelay * time.Duration(attempt+2)
		}

		c.log.WithError(err).WithFields(logrus.Fields{
			"backend": c.backend.Name(),
			"attempt": attempt + 1,
			"wait":    wait,
		}).Warn("extractor: backend call failed, retrying")

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("extractor: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return "", fmt.Errorf("extractor: exhausted %d retries: %w", c.MaxRetries, lastErr)
}

// buildBatchPrompt renders an indexed JSON array of segments plus the wire
// format the backend is expected to return.
func buildBatchPrompt(texts []string) string {
	type seg struct {
		ID   int    `json:"id"`
		Text string `json:"text"`
	}
	segments := make([]seg, len(texts))
	for i, t := range texts {
		if len(t) > 2000 {
			t = t[:2000]
		}
		segments[i] = seg{ID: i, Text: t}
	}
	payload, _ := json.Marshal(segments)

	var b strings.Builder
	fmt.Fprintf(&b, "Analyse ces %d segments. Retourne un JSON array.\n\nSEGMENTS:\n%s\n\n", len(texts), payload)
	b.WriteString(`FORMAT pour chaque segment: {"id": 0, "tags_roget": ["XX-XXXX-XXXX"], "emotion_valence": 0.0, "emotion_activation": 0.5, "entites": {"personnes": [], "lieux": [], "projets": [], "sujets": []}, "resume_texte": "", "confidence_score": 1.0}` + "\n\nRETOURNE UNIQUEMENT LE JSON ARRAY:")
	return b.String()
}

func toModelRecord(w wireRecord) models.ExtractorRecord {
	rec := models.ExtractorRecord{
		Indexable:            derefBool(w.Indexable, true),
		EmotionValence:       derefFloat(w.EmotionValence, 0.0),
		EmotionActivation:    derefFloat(w.EmotionActivation, 0.5),
		PhysiqueEnergie:      w.PhysiqueEnergie,
		PhysiqueStress:       w.PhysiqueStress,
		CognitionCertitude:   orDefault(w.CognitionCertitude, 0.5),
		CognitionComplexite:  orDefault(w.CognitionComplexite, 0.5),
		CognitionAbstraction: orDefault(w.CognitionAbstraction, 0.5),
		CommClarte:           orDefault(w.CommClarte, 0.5),
		CommFormalite:        orDefault(w.CommFormalite, 0.5),
		TagsRoget:            w.TagsRoget,
		Personnes:            w.Entites.Personnes,
		Projets:              w.Entites.Projets,
		Sujets:               w.Entites.Sujets,
		Lieux:                w.Entites.Lieux,
		ResumeTexte:          w.ResumeTexte,
		MotsCles:             w.ResumeMotsCles,
		GrID:                 w.GrID,
		ConfidenceScore:      derefFloat(w.ConfidenceScore, 1.0),
		PersonneCandidat:     w.PersonneCandidat,
		ProjetCandidat:       w.ProjetCandidat,
	}
	if len(rec.TagsRoget) == 0 {
		rec.TagsRoget = []string{models.DefaultTag}
	}
	return rec
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func derefFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func orDefault(p *float64, def float64) *float64 {
	if p == nil {
		v := def
		return &v
	}
	return p
}
