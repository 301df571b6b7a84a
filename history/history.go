package history

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"
)

// Store is a chat history keyed by session id. Messages come back in the order
// they were appended.
type Store interface {
	Messages(ctx context.Context, sessionID string) ([]llms.ChatMessage, error)
	Append(ctx context.Context, sessionID string, messages ...llms.ChatMessage) error
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore keeps one langchaingo ChatMessageHistory per session in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memory.ChatMessageHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memory.ChatMessageHistory)}
}

func (m *MemoryStore) session(sessionID string) *memory.ChatMessageHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[sessionID]
	if !ok {
		h = memory.NewChatMessageHistory()
		m.sessions[sessionID] = h
	}
	return h
}

func (m *MemoryStore) Messages(ctx context.Context, sessionID string) ([]llms.ChatMessage, error) {
	return m.session(sessionID).Messages(ctx)
}

func (m *MemoryStore) Append(ctx context.Context, sessionID string, messages ...llms.ChatMessage) error {
	h := m.session(sessionID)
	for _, msg := range messages {
		if err := h.AddMessage(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
