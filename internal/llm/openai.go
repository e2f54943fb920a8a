package llm

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/logger"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultTimeout = 60 * time.Second
	openAIDefaultModel   = "gpt-4o-mini"
	openAIEmbedModel     = "text-embedding-3-small"
)

// OpenAIProvider implements Provider against any OpenAI-compatible API.
// The chat-completions and embeddings wire format matches the Z.ai codec,
// so the request and response types are shared with it.
type OpenAIProvider struct {
	client   *http.Client
	cfg      config.OpenAIConfig
	chatURL  string
	embedURL string
	logger   *logger.Logger
}

// NewOpenAIProvider creates a provider from configuration.
func NewOpenAIProvider(cfg config.OpenAIConfig, log *logger.Logger) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = openAIDefaultTimeout
	}

	return &OpenAIProvider{
		client:   &http.Client{Timeout: timeout},
		cfg:      cfg,
		chatURL:  baseURL + "/chat/completions",
		embedURL: baseURL + "/embeddings",
		logger:   log,
	}
}

func (p *OpenAIProvider) post(ctx stdcontext.Context, url string, reqBody []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.cfg.APIKey))

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.ErrorCtx(ctx, "failed to execute request to OpenAI-compatible API", err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.ErrorCtx(ctx, "OpenAI-compatible API returned error status", nil,
			logger.Field{Key: "status_code", Value: httpResp.StatusCode},
			logger.Field{Key: "response_body", Value: string(respBody)})
		return nil, &zaiHTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx stdcontext.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]zaiMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = zaiMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
	}

	wireReq := zaiRequest{
		Messages:    messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if wireReq.Model == "" {
		wireReq.Model = p.cfg.Model
	}

	jsonBody, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := p.post(ctx, p.chatURL, jsonBody)
	if err != nil {
		return nil, err
	}

	var wireResp zaiResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if wireResp.Error != nil {
		return nil, fmt.Errorf("API error: %s (code: %s): %s",
			wireResp.Error.Type, wireResp.Error.Code, wireResp.Error.Message)
	}

	usage := Usage{
		PromptTokens:     wireResp.Usage.PromptTokens,
		CompletionTokens: wireResp.Usage.CompletionTokens,
		TotalTokens:      wireResp.Usage.TotalTokens,
	}

	if len(wireResp.Choices) == 0 {
		return &ChatResponse{FinishReason: FinishReasonError, Usage: usage, Model: wireResp.Model}, nil
	}

	choice := wireResp.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: FinishReason(choice.FinishReason),
		Usage:        usage,
		Model:        wireResp.Model,
	}, nil
}

// Embed requests an embedding vector for the input text.
func (p *OpenAIProvider) Embed(ctx stdcontext.Context, req EmbedRequest) (*EmbedResponse, error) {
	model := req.Model
	if model == "" {
		model = openAIEmbedModel
	}

	jsonBody, err := json.Marshal(zaiEmbedRequest{Input: req.Input, Model: model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := p.post(ctx, p.embedURL, jsonBody)
	if err != nil {
		return nil, err
	}

	var wireResp zaiEmbedResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if wireResp.Error != nil {
		return nil, fmt.Errorf("API error: %s (code: %s): %s",
			wireResp.Error.Type, wireResp.Error.Code, wireResp.Error.Message)
	}
	if len(wireResp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contains no data")
	}

	return &EmbedResponse{
		Embedding: wireResp.Data[0].Embedding,
		Model:     wireResp.Model,
		Usage: Usage{
			PromptTokens: wireResp.Usage.PromptTokens,
			TotalTokens:  wireResp.Usage.TotalTokens,
		},
	}, nil
}

// SupportsToolCalling reports false: the fallback path sends plain
// completions only.
func (p *OpenAIProvider) SupportsToolCalling() bool {
	return false
}

// GetDefaultModel returns the configured default model.
func (p *OpenAIProvider) GetDefaultModel() string {
	return p.cfg.Model
}
