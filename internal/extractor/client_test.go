package extractor

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name      string
	responses []string
	errs      []error
	calls     int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Complete(ctx context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func silentLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestClientExtractBatchHappyPath(t *testing.T) {
	backend := &fakeBackend{
		name: "fake",
		responses: []string{
			`[{"id":0,"tags_roget":["06-0030-0110"],"emotion_valence":0.6,"emotion_activation":0.5,"entites":{"personnes":["Marie"]},"resume_texte":"salutation","confidence_score":0.9}]`,
		},
	}
	client := NewClient(backend, silentLogger())

	records, err := client.ExtractBatch(context.Background(), []string{"bonjour Marie"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"06-0030-0110"}, records[0].TagsRoget)
	assert.Equal(t, []string{"Marie"}, records[0].Personnes)
	assert.Equal(t, 0.9, records[0].ConfidenceScore)
}

func TestClientExtractSingleSegment(t *testing.T) {
	backend := &fakeBackend{
		name:      "fake",
		responses: []string{`[{"id":0,"resume_texte":"ok"}]`},
	}
	client := NewClient(backend, silentLogger())

	rec, err := client.Extract(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.ResumeTexte)
	assert.Equal(t, []string{"04-0110-0010"}, rec.TagsRoget)
}

func TestClientExtractBatchFallsBackOnTransportFailure(t *testing.T) {
	backend := &fakeBackend{
		name: "fake",
		errs: []error{assertErr{}, assertErr{}, assertErr{}},
	}
	client := NewClient(backend, silentLogger())
	client.MaxRetries = 2
	client.RetryDelay = 0

	records, err := client.ExtractBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, 0.5, r.ConfidenceScore)
		assert.Equal(t, "[extraction failed]", r.ResumeTexte)
	}
}

func TestClientExtractBatchRetriesThenSucceeds(t *testing.T) {
	backend := &fakeBackend{
		name:      "fake",
		errs:      []error{assertErr{}},
		responses: []string{"", `[{"id":0,"resume_texte":"recovered"}]`},
	}
	client := NewClient(backend, silentLogger())
	client.RetryDelay = 0

	records, err := client.ExtractBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "recovered", records[0].ResumeTexte)
}

func TestClientUsesLastKnownGoodOnLaterFailure(t *testing.T) {
	backend := &fakeBackend{name: "fake"}
	client := NewClient(backend, silentLogger())
	client.RetryDelay = 0

	backend.responses = []string{`[{"id":0,"resume_texte":"first good","tags_roget":["01-0010-0010"]}]`}
	_, err := client.ExtractBatch(context.Background(), []string{"a"})
	require.NoError(t, err)

	backend.calls = 0
	backend.errs = []error{assertErr{}, assertErr{}, assertErr{}}
	backend.responses = nil
	client.MaxRetries = 3

	records, err := client.ExtractBatch(context.Background(), []string{"b"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"01-0010-0010"}, records[0].TagsRoget)
	assert.Equal(t, 0.5, records[0].ConfidenceScore)
}

type assertErr struct{}

func (assertErr) Error() string { return "transport failure" }
