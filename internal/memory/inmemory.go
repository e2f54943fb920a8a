package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/aatumaykin/nexos/internal/llm"
)

// InMemoryStore keeps conversations in process memory. When an embedder is
// provided, relevance is cosine similarity over embeddings; otherwise it
// falls back to token overlap. Entries are bounded per session.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]storedConversation
	embedder llm.Provider
	perLimit int
}

type storedConversation struct {
	Conversation
	embedding []float64
}

// NewInMemoryStore creates a store. embedder may be nil.
func NewInMemoryStore(embedder llm.Provider, perSessionLimit int) *InMemoryStore {
	if perSessionLimit <= 0 {
		perSessionLimit = 100
	}
	return &InMemoryStore{
		sessions: make(map[string][]storedConversation),
		embedder: embedder,
		perLimit: perSessionLimit,
	}
}

func (s *InMemoryStore) StoreConversation(ctx context.Context, conv Conversation) error {
	entry := storedConversation{Conversation: conv}

	if s.embedder != nil {
		resp, err := s.embedder.Embed(ctx, llm.EmbedRequest{Input: conv.Command})
		if err == nil {
			entry.embedding = resp.Embedding
		}
		// An embedding failure degrades to token matching, it does not
		// block the store.
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.sessions[conv.SessionID], entry)
	if len(entries) > s.perLimit {
		entries = entries[len(entries)-s.perLimit:]
	}
	s.sessions[conv.SessionID] = entries
	return nil
}

func (s *InMemoryStore) RetrieveRelevant(ctx context.Context, sessionID, query string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 5
	}

	var queryEmbedding []float64
	if s.embedder != nil {
		if resp, err := s.embedder.Embed(ctx, llm.EmbedRequest{Input: query}); err == nil {
			queryEmbedding = resp.Embedding
		}
	}

	s.mu.Lock()
	entries := make([]storedConversation, len(s.sessions[sessionID]))
	copy(entries, s.sessions[sessionID])
	s.mu.Unlock()

	type scored struct {
		conv  Conversation
		score float64
	}

	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		var score float64
		if queryEmbedding != nil && e.embedding != nil {
			score = cosine(queryEmbedding, e.embedding)
		} else {
			score = tokenOverlap(query, e.Command)
		}
		if score > 0 {
			ranked = append(ranked, scored{conv: e.Conversation, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Conversation, len(ranked))
	for i, r := range ranked {
		out[i] = r.conv
	}
	return out, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenOverlap(query, text string) float64 {
	queryTokens := strings.Fields(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		textTokens[tok] = true
	}

	hits := 0
	for _, tok := range queryTokens {
		if textTokens[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}
