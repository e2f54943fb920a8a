package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userChat(content string) ChatRequest {
	return ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: content}},
		Model:    "mock-model",
	}
}

func TestMockProviderEcho(t *testing.T) {
	p := NewEchoProvider()

	resp, err := p.Chat(context.Background(), userChat("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Echo: hello", resp.Content)
	assert.Equal(t, FinishReasonStop, resp.FinishReason)
}

func TestMockProviderFixed(t *testing.T) {
	p := NewFixedProvider("always this")

	for i := 0; i < 3; i++ {
		resp, err := p.Chat(context.Background(), userChat("anything"))
		require.NoError(t, err)
		assert.Equal(t, "always this", resp.Content)
	}
	assert.Equal(t, 3, p.GetCallCount())
}

func TestMockProviderFixturesRotate(t *testing.T) {
	p := NewFixturesProvider([]string{"one", "two"})

	got := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := p.Chat(context.Background(), userChat("x"))
		require.NoError(t, err)
		got = append(got, resp.Content)
	}
	assert.Equal(t, []string{"one", "two", "one"}, got)
}

func TestMockProviderError(t *testing.T) {
	p := NewErrorProvider()

	_, err := p.Chat(context.Background(), userChat("x"))
	require.Error(t, err)

	_, err = p.Embed(context.Background(), EmbedRequest{Input: "x"})
	require.Error(t, err)
}

func TestMockProviderErrorAfter(t *testing.T) {
	p := NewFixedProvider("ok")
	p.SetErrorAfter(2)

	_, err := p.Chat(context.Background(), userChat("1"))
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), userChat("2"))
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), userChat("3"))
	require.Error(t, err)
}

func TestMockProviderEmbedDeterministic(t *testing.T) {
	p := NewEchoProvider()

	first, err := p.Embed(context.Background(), EmbedRequest{Input: "same input"})
	require.NoError(t, err)
	second, err := p.Embed(context.Background(), EmbedRequest{Input: "same input"})
	require.NoError(t, err)

	assert.Equal(t, first.Embedding, second.Embedding)
	assert.Len(t, first.Embedding, 8)
}

func TestMockProviderContract(t *testing.T) {
	var p Provider = NewEchoProvider()
	assert.False(t, p.SupportsToolCalling())
	assert.Equal(t, "mock-model", p.GetDefaultModel())
}
