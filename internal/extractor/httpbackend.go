package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPBackend is a Backend talking to an OpenAI-compatible chat/completions
// endpoint over plain net/http. No third-party HTTP/LLM client library
// survives in the corpus's fetchable dependency set (only provider_test.go
// fixtures remain, exercising the wire shape without a shipped client), so
// this is the one ambient-stack piece built directly on the standard
// library — see DESIGN.md.
type HTTPBackend struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPBackend wires a Backend against any OpenAI-compatible
// /chat/completions endpoint (local or hosted).
func NewHTTPBackend(name, baseURL, apiKey, model string) *HTTPBackend {
	return &HTTPBackend{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (b *HTTPBackend) Name() string { return b.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (b *HTTPBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    b.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("extractor: %s: marshal request: %w", b.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("extractor: %s: build request: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extractor: %s: %w", b.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("extractor: %s: read response: %w", b.name, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &rateLimitedError{name: b.name, status: resp.StatusCode}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("extractor: %s: unmarshal response: %w", b.name, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("extractor: %s: %s", b.name, parsed.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("extractor: %s: status %d: %s", b.name, resp.StatusCode, string(data))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("extractor: %s: empty choices in response", b.name)
	}
	return parsed.Choices[0].Message.Content, nil
}

type rateLimitedError struct {
	name   string
	status int
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("extractor: %s: rate limited (status %d)", e.name, e.status)
}

func (e *rateLimitedError) RateLimited() bool { return true }
