package llm

import (
	"context"
)

// Provider is the narrow contract the coordinator needs from an LLM
// backend. Concrete HTTP clients stay behind it.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed produces an embedding vector for the given input text.
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)

	// SupportsToolCalling reports whether tool definitions may be sent.
	SupportsToolCalling() bool

	// GetDefaultModel returns the model used when the request names none.
	GetDefaultModel() string
}

// Role represents the role of a message sender in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single message in the chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCallID is set for RoleTool messages to identify which tool call
	// this result is for.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// FinishReason indicates why the model stopped generating tokens.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonError     FinishReason = "error"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Arguments is a JSON string containing the call arguments.
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the tool's input.
	Parameters map[string]interface{} `json:"parameters"`
}

// Usage tracks token consumption for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`

	Tools []ToolDefinition `json:"tools,omitempty"`
}

// ChatResponse is the provider's reply.
type ChatResponse struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason"`
	ToolCalls    []ToolCall   `json:"tool_calls"`
	Usage        Usage        `json:"usage"`

	// Model is the model that actually served the completion.
	Model string `json:"model"`
}

// EmbedRequest asks for an embedding of one input text.
type EmbedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// EmbedResponse carries the embedding vector.
type EmbedResponse struct {
	Embedding []float64 `json:"embedding"`
	Model     string    `json:"model"`
	Usage     Usage     `json:"usage"`
}
