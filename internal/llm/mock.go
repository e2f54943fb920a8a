package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a Provider implementation for tests and graceful
// degradation scenarios.
type MockProvider struct {
	mu            sync.Mutex
	responses     []string
	responseIndex int
	mode          MockMode
	errorAfter    int
	callCount     int
}

// MockMode defines the operation mode of the mock provider.
type MockMode int

const (
	// MockModeEcho returns the user's message back.
	MockModeEcho MockMode = iota

	// MockModeFixed returns a fixed response.
	MockModeFixed

	// MockModeFixtures returns pre-defined responses in rotation.
	MockModeFixtures

	// MockModeError always returns an error.
	MockModeError
)

// MockConfig holds configuration for the mock provider.
type MockConfig struct {
	Mode       MockMode
	Responses  []string
	ErrorAfter int
}

func NewMockProvider(cfg MockConfig) *MockProvider {
	return &MockProvider{
		mode:       cfg.Mode,
		responses:  cfg.Responses,
		errorAfter: cfg.ErrorAfter,
	}
}

// NewEchoProvider creates a mock provider that echoes user messages.
func NewEchoProvider() *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeEcho})
}

// NewFixedProvider creates a mock provider with a single fixed response.
func NewFixedProvider(response string) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeFixed, Responses: []string{response}})
}

// NewFixturesProvider creates a mock provider cycling through responses.
func NewFixturesProvider(responses []string) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeFixtures, Responses: responses})
}

// NewErrorProvider creates a mock provider that always fails.
func NewErrorProvider() *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeError})
}

// Chat implements Provider.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++

	if m.errorAfter > 0 && m.callCount > m.errorAfter {
		return nil, fmt.Errorf("mock provider error after %d calls", m.errorAfter)
	}
	if m.mode == MockModeError {
		return nil, fmt.Errorf("mock provider error")
	}

	var userMessage string
	if len(req.Messages) > 0 {
		lastMsg := req.Messages[len(req.Messages)-1]
		if lastMsg.Role == RoleUser {
			userMessage = lastMsg.Content
		}
	}

	var response string
	switch m.mode {
	case MockModeEcho:
		if userMessage != "" {
			response = fmt.Sprintf("Echo: %s", userMessage)
		} else {
			response = "Echo: (no user message)"
		}
	case MockModeFixed:
		if len(m.responses) > 0 {
			response = m.responses[0]
		}
	case MockModeFixtures:
		if len(m.responses) > 0 {
			response = m.responses[m.responseIndex]
			m.responseIndex = (m.responseIndex + 1) % len(m.responses)
		}
	}

	return &ChatResponse{
		Content:      response,
		Model:        req.Model,
		FinishReason: FinishReasonStop,
		Usage: Usage{
			PromptTokens:     len(userMessage),
			CompletionTokens: len(response),
			TotalTokens:      len(userMessage) + len(response),
		},
	}, nil
}

// Embed implements Provider with a deterministic fake vector derived from
// the input length.
func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == MockModeError {
		return nil, fmt.Errorf("mock provider error")
	}

	vec := make([]float64, 8)
	for i := range vec {
		vec[i] = float64((len(req.Input)+i)%7) / 7.0
	}

	return &EmbedResponse{
		Embedding: vec,
		Model:     "mock-embedding",
		Usage:     Usage{PromptTokens: len(req.Input), TotalTokens: len(req.Input)},
	}, nil
}

// SupportsToolCalling implements Provider; the mock does not support it.
func (m *MockProvider) SupportsToolCalling() bool {
	return false
}

// GetDefaultModel implements Provider.
func (m *MockProvider) GetDefaultModel() string {
	return "mock-model"
}

// GetCallCount returns the number of Chat calls made.
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// SetErrorAfter configures the provider to fail after n successful calls.
func (m *MockProvider) SetErrorAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorAfter = n
}
