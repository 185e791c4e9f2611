package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Suitable for tests and
// single-instance deployments; contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	maxTurns int
}

// NewMemoryStore creates an in-memory store keeping at most maxTurns
// per session (DefaultMaxTurns when <= 0).
func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryStore{
		sessions: make(map[string][]Turn),
		maxTurns: maxTurns,
	}
}

// AppendTurn records a turn, evicting the oldest when the session is full.
func (s *MemoryStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	if sessionID == "" {
		return ErrInvalidInput
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], turn)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.sessions[sessionID] = turns
	return nil
}

// LoadHistory returns the session's turns oldest first.
func (s *MemoryStore) LoadHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

var _ ConversationStore = (*MemoryStore)(nil)
