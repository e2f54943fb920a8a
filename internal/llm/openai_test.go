package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/nexos/internal/config"
)

func openAITestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewOpenAIProvider(config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
	}, testLogger(t))
}

func TestOpenAIChatSuccess(t *testing.T) {
	provider := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req zaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model, "empty request model falls back to the configured default")

		resp := zaiResponse{
			Model: "gpt-4o-mini",
			Choices: []zaiChoice{{
				Message:      zaiMessage{Role: "assistant", Content: "hello"},
				FinishReason: "stop",
			}},
			Usage: zaiUsage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	resp, err := provider.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, FinishReasonStop, resp.FinishReason)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
}

func TestOpenAIChatHTTPError(t *testing.T) {
	provider := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	})

	_, err := provider.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var httpErr *zaiHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestOpenAIEmbed(t *testing.T) {
	provider := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req zaiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, openAIEmbedModel, req.Model)

		resp := zaiEmbedResponse{Model: openAIEmbedModel}
		resp.Data = append(resp.Data, struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}{Embedding: []float64{0.1, 0.2}})
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	resp, err := provider.Embed(context.Background(), EmbedRequest{Input: "text"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, resp.Embedding)
}
