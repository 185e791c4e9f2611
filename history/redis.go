package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig configures the Redis-backed conversation store.
type RedisStoreConfig struct {
	// KeyPrefix namespaces session keys (default "supportflow:session:").
	KeyPrefix string

	// TTL expires idle sessions; 0 keeps them forever.
	TTL time.Duration

	// MaxTurns bounds turns kept per session (DefaultMaxTurns when <= 0).
	MaxTurns int
}

// RedisStore is a Redis-backed conversation store. Each session is a
// list of JSON-encoded turns, trimmed to the newest MaxTurns, with the
// session TTL refreshed on every append.
type RedisStore struct {
	client *redis.Client
	cfg    RedisStoreConfig
}

// NewRedisStore wraps an existing client; the caller owns the client's
// lifecycle.
func NewRedisStore(client *redis.Client, cfg RedisStoreConfig) *RedisStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "supportflow:session:"
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &RedisStore{client: client, cfg: cfg}
}

// Ping checks the store's backing connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.cfg.KeyPrefix + sessionID
}

// AppendTurn records a turn and trims the session to MaxTurns.
func (s *RedisStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	if sessionID == "" {
		return ErrInvalidInput
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := s.sessionKey(sessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.cfg.MaxTurns), -1)
	if s.cfg.TTL > 0 {
		pipe.Expire(ctx, key, s.cfg.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// LoadHistory returns the session's turns oldest first. A corrupt
// entry fails the load rather than silently dropping a turn.
func (s *RedisStore) LoadHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}

	raw, err := s.client.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, entry := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

var _ ConversationStore = (*RedisStore)(nil)
