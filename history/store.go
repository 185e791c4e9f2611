package history

import (
	"context"
	"errors"
	"time"

	"github.com/supportflow/supportflow/llm"
	"github.com/supportflow/supportflow/types"
)

// ErrInvalidInput is returned for empty session IDs or nil turns.
var ErrInvalidInput = errors.New("history: invalid input")

// DefaultMaxTurns bounds how many turns a session keeps; older turns
// are evicted first.
const DefaultMaxTurns = 20

// Turn is one completed question and answer exchange.
type Turn struct {
	Question  string                   `json:"question"`
	Answer    string                   `json:"answer"`
	Sources   []types.SourceDescriptor `json:"sources,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}

// ConversationStore persists and replays per-session turns. Turns are
// returned in chronological order, oldest first.
type ConversationStore interface {
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
	LoadHistory(ctx context.Context, sessionID string) ([]Turn, error)
}

// ToMessages renders turns as alternating chat messages for prompt
// replay.
func ToMessages(turns []Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns)*2)
	for _, t := range turns {
		out = append(out,
			llm.Message{Role: llm.RoleUser, Content: t.Question},
			llm.Message{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	return out
}
