package llm

import (
	"context"

	"github.com/aatumaykin/nexos/internal/logger"
)

// FailoverProvider routes requests to a primary provider and falls back to
// a secondary when the primary fails. The rate limiter sits in front of
// both so a failing primary cannot double the outbound request rate.
type FailoverProvider struct {
	primary   Provider
	secondary Provider
	limiter   *TokenBucketRateLimiter
	logger    *logger.Logger
}

// NewFailoverProvider wraps primary with an optional secondary fallback.
// limiter may be nil to disable rate limiting.
func NewFailoverProvider(primary, secondary Provider, limiter *TokenBucketRateLimiter, log *logger.Logger) *FailoverProvider {
	return &FailoverProvider{
		primary:   primary,
		secondary: secondary,
		limiter:   limiter,
		logger:    log,
	}
}

func (f *FailoverProvider) allow() error {
	if f.limiter == nil {
		return nil
	}
	if ok, retryAfter := f.limiter.TryAcquire(); !ok {
		return &RateLimitExceededError{RetryAfter: retryAfter}
	}
	return nil
}

// Chat implements Provider.
func (f *FailoverProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := f.allow(); err != nil {
		return nil, err
	}

	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	if f.secondary == nil || ctx.Err() != nil {
		return nil, err
	}

	f.logger.WarnCtx(ctx, "primary LLM provider failed, falling back",
		logger.Field{Key: "error", Value: err})

	// The fallback provider may not know the primary's model names.
	fallbackReq := req
	fallbackReq.Model = ""
	return f.secondary.Chat(ctx, fallbackReq)
}

// Embed implements Provider.
func (f *FailoverProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if err := f.allow(); err != nil {
		return nil, err
	}

	resp, err := f.primary.Embed(ctx, req)
	if err == nil {
		return resp, nil
	}
	if f.secondary == nil || ctx.Err() != nil {
		return nil, err
	}

	f.logger.WarnCtx(ctx, "primary LLM provider failed on embed, falling back",
		logger.Field{Key: "error", Value: err})

	fallbackReq := req
	fallbackReq.Model = ""
	return f.secondary.Embed(ctx, fallbackReq)
}

// SupportsToolCalling reports the primary's capability; a fallback that
// cannot handle tools simply returns plain completions.
func (f *FailoverProvider) SupportsToolCalling() bool {
	return f.primary.SupportsToolCalling()
}

// GetDefaultModel implements Provider.
func (f *FailoverProvider) GetDefaultModel() string {
	return f.primary.GetDefaultModel()
}
