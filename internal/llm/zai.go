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
	zaiDefaultBaseURL = "https://api.z.ai/api/coding/paas/v4"
	zaiDefaultTimeout = 60 * time.Second
	zaiDefaultModel   = "glm-4.7-flash"
)

// ZAIProvider implements Provider against the Z.ai Coding API.
type ZAIProvider struct {
	client   *http.Client
	cfg      config.ZAIConfig
	chatURL  string
	embedURL string
	logger   *logger.Logger
}

type zaiRequest struct {
	Messages    []zaiMessage `json:"messages"`
	Model       string       `json:"model"`
	Temperature float64      `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Tools       []zaiTool    `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"`
}

type zaiMessage struct {
	Role             string        `json:"role"`
	Content          string        `json:"content"`
	ToolCallID       string        `json:"tool_call_id,omitempty"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	ToolCalls        []zaiToolCall `json:"tool_calls,omitempty"`
}

type zaiTool struct {
	Type     string                 `json:"type"`
	Function map[string]interface{} `json:"function"`
}

type zaiResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []zaiChoice  `json:"choices"`
	Usage   zaiUsage     `json:"usage"`
	Error   *zaiAPIError `json:"error,omitempty"`
}

type zaiChoice struct {
	Index        int        `json:"index"`
	Message      zaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

type zaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Index    int    `json:"index,omitempty"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type zaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type zaiAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type zaiEmbedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type zaiEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string       `json:"model"`
	Usage zaiUsage     `json:"usage"`
	Error *zaiAPIError `json:"error,omitempty"`
}

// zaiHTTPError is a non-2xx response from the API.
type zaiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *zaiHTTPError) Error() string {
	return fmt.Sprintf("HTTP error: status=%d, body=%s", e.StatusCode, e.Body)
}

// NewZAIProvider creates a provider from configuration.
func NewZAIProvider(cfg config.ZAIConfig, log *logger.Logger) *ZAIProvider {
	if cfg.Model == "" {
		cfg.Model = zaiDefaultModel
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = zaiDefaultBaseURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = zaiDefaultTimeout
	}

	return &ZAIProvider{
		client:   &http.Client{Timeout: timeout},
		cfg:      cfg,
		chatURL:  baseURL + "/chat/completions",
		embedURL: baseURL + "/embeddings",
		logger:   log,
	}
}

func (p *ZAIProvider) post(ctx stdcontext.Context, url string, reqBody []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.cfg.APIKey))

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.ErrorCtx(ctx, "failed to execute request to Z.ai API", err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.ErrorCtx(ctx, "failed to read response body", err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.ErrorCtx(ctx, "Z.ai API returned error status", nil,
			logger.Field{Key: "status_code", Value: httpResp.StatusCode},
			logger.Field{Key: "response_body", Value: string(respBody)})
		return nil, &zaiHTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

func (p *ZAIProvider) mapChatRequest(req ChatRequest) zaiRequest {
	messages := make([]zaiMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = zaiMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
	}

	zaiReq := zaiRequest{
		Messages:    messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if zaiReq.Model == "" {
		zaiReq.Model = p.cfg.Model
	}

	if len(req.Tools) > 0 {
		zaiReq.Tools = make([]zaiTool, len(req.Tools))
		for i, tool := range req.Tools {
			zaiReq.Tools[i] = zaiTool{
				Type: "function",
				Function: map[string]interface{}{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			}
		}
		zaiReq.ToolChoice = "auto"
	}

	return zaiReq
}

func (p *ZAIProvider) mapChatResponse(zaiResp *zaiResponse) *ChatResponse {
	usage := Usage{
		PromptTokens:     zaiResp.Usage.PromptTokens,
		CompletionTokens: zaiResp.Usage.CompletionTokens,
		TotalTokens:      zaiResp.Usage.TotalTokens,
	}

	if len(zaiResp.Choices) == 0 {
		return &ChatResponse{
			FinishReason: FinishReasonError,
			ToolCalls:    []ToolCall{},
			Usage:        usage,
			Model:        zaiResp.Model,
		}
	}

	choice := zaiResp.Choices[0]

	toolCalls := make([]ToolCall, len(choice.Message.ToolCalls))
	for i, tc := range choice.Message.ToolCalls {
		toolCalls[i] = ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}

	// Fall back to reasoning_content when content is empty (GLM-4.7+).
	content := choice.Message.Content
	if content == "" && choice.Message.ReasoningContent != "" {
		content = choice.Message.ReasoningContent
	}

	return &ChatResponse{
		Content:      content,
		FinishReason: FinishReason(choice.FinishReason),
		ToolCalls:    toolCalls,
		Usage:        usage,
		Model:        zaiResp.Model,
	}
}

// Chat sends a chat completion request to the Z.ai API.
func (p *ZAIProvider) Chat(ctx stdcontext.Context, req ChatRequest) (*ChatResponse, error) {
	p.logger.DebugCtx(ctx, "sending chat request to Z.ai API",
		logger.Field{Key: "model", Value: req.Model},
		logger.Field{Key: "messages_count", Value: len(req.Messages)})

	jsonBody, err := json.Marshal(p.mapChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := p.post(ctx, p.chatURL, jsonBody)
	if err != nil {
		return nil, err
	}

	var zaiResp zaiResponse
	if err := json.Unmarshal(respBody, &zaiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if zaiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s (code: %s): %s",
			zaiResp.Error.Type, zaiResp.Error.Code, zaiResp.Error.Message)
	}

	return p.mapChatResponse(&zaiResp), nil
}

// Embed requests an embedding vector for the input text.
func (p *ZAIProvider) Embed(ctx stdcontext.Context, req EmbedRequest) (*EmbedResponse, error) {
	model := req.Model
	if model == "" {
		model = "embedding-3"
	}

	jsonBody, err := json.Marshal(zaiEmbedRequest{Input: req.Input, Model: model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := p.post(ctx, p.embedURL, jsonBody)
	if err != nil {
		return nil, err
	}

	var zaiResp zaiEmbedResponse
	if err := json.Unmarshal(respBody, &zaiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if zaiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s (code: %s): %s",
			zaiResp.Error.Type, zaiResp.Error.Code, zaiResp.Error.Message)
	}
	if len(zaiResp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contains no data")
	}

	return &EmbedResponse{
		Embedding: zaiResp.Data[0].Embedding,
		Model:     zaiResp.Model,
		Usage: Usage{
			PromptTokens: zaiResp.Usage.PromptTokens,
			TotalTokens:  zaiResp.Usage.TotalTokens,
		},
	}, nil
}

// SupportsToolCalling returns true as GLM-4.7 supports tool calling.
func (p *ZAIProvider) SupportsToolCalling() bool {
	return true
}

// GetDefaultModel returns the configured default model.
func (p *ZAIProvider) GetDefaultModel() string {
	return p.cfg.Model
}
