package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackendCompleteSendsBearerAndParsesChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, "bonjour", req.Messages[0].Content)

		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "salut"}}},
		})
	}))
	defer server.Close()

	b := NewHTTPBackend("local", server.URL, "test-key", "gpt-4o")
	out, err := b.Complete(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "salut", out)
}

func TestHTTPBackendCompleteReturnsRateLimitedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	b := NewHTTPBackend("local", server.URL, "", "gpt-4o")
	_, err := b.Complete(context.Background(), "x")
	require.Error(t, err)
	var rl interface{ RateLimited() bool }
	require.ErrorAs(t, err, &rl)
	assert.True(t, rl.RateLimited())
}
