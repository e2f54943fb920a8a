package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailoverUsesPrimaryWhenHealthy(t *testing.T) {
	primary := NewFixedProvider("from primary")
	secondary := NewFixedProvider("from secondary")
	f := NewFailoverProvider(primary, secondary, nil, testLogger(t))

	resp, err := f.Chat(context.Background(), userChat("hi"))
	require.NoError(t, err)
	assert.Equal(t, "from primary", resp.Content)
	assert.Equal(t, 0, secondary.GetCallCount())
}

func TestFailoverFallsBackOnPrimaryError(t *testing.T) {
	primary := NewErrorProvider()
	secondary := NewFixedProvider("from secondary")
	f := NewFailoverProvider(primary, secondary, nil, testLogger(t))

	resp, err := f.Chat(context.Background(), userChat("hi"))
	require.NoError(t, err)
	assert.Equal(t, "from secondary", resp.Content)
}

func TestFailoverWithoutSecondaryPropagatesError(t *testing.T) {
	f := NewFailoverProvider(NewErrorProvider(), nil, nil, testLogger(t))

	_, err := f.Chat(context.Background(), userChat("hi"))
	require.Error(t, err)
}

func TestFailoverRateLimit(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(1, time.Minute, 1)
	f := NewFailoverProvider(NewFixedProvider("ok"), nil, limiter, testLogger(t))

	_, err := f.Chat(context.Background(), userChat("1"))
	require.NoError(t, err)

	_, err = f.Chat(context.Background(), userChat("2"))
	require.Error(t, err)

	var rlErr *RateLimitExceededError
	require.True(t, errors.As(err, &rlErr))
}

func TestFailoverDoesNotFallBackOnCancelledContext(t *testing.T) {
	primary := NewErrorProvider()
	secondary := NewFixedProvider("should not be used")
	f := NewFailoverProvider(primary, secondary, nil, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Chat(ctx, userChat("hi"))
	require.Error(t, err)
	assert.Equal(t, 0, secondary.GetCallCount())
}

func TestFailoverEmbed(t *testing.T) {
	primary := NewErrorProvider()
	secondary := NewEchoProvider()
	f := NewFailoverProvider(primary, secondary, nil, testLogger(t))

	resp, err := f.Embed(context.Background(), EmbedRequest{Input: "text"})
	require.NoError(t, err)
	assert.Len(t, resp.Embedding, 8)
}
