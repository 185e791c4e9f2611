package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/supportflow/supportflow/llm"
	"github.com/supportflow/supportflow/types"
)

func turnAt(i int) Turn {
	return Turn{
		Question:  fmt.Sprintf("question %d", i),
		Answer:    fmt.Sprintf("answer %d", i),
		CreatedAt: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestToMessages(t *testing.T) {
	turns := []Turn{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
	}

	msgs := ToMessages(turns)
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "q1"}, msgs[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "a1"}, msgs[1])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "q2"}, msgs[2])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "a2"}, msgs[3])
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "s1", turnAt(1)))
	require.NoError(t, store.AppendTurn(ctx, "s1", turnAt(2)))
	require.NoError(t, store.AppendTurn(ctx, "s2", turnAt(3)))

	turns, err := store.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "question 1", turns[0].Question)
	assert.Equal(t, "question 2", turns[1].Question)

	other, err := store.LoadHistory(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestMemoryStoreTrimsOldestTurns(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.AppendTurn(ctx, "s1", turnAt(i)))
	}

	turns, err := store.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "question 3", turns[0].Question)
	assert.Equal(t, "question 5", turns[2].Question)
}

func TestMemoryStoreRejectsEmptySession(t *testing.T) {
	store := NewMemoryStore(0)
	assert.ErrorIs(t, store.AppendTurn(context.Background(), "", turnAt(1)), ErrInvalidInput)
	_, err := store.LoadHistory(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMemoryStoreUnknownSessionIsEmpty(t *testing.T) {
	store := NewMemoryStore(0)
	turns, err := store.LoadHistory(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func newTestRedisStore(t *testing.T, cfg RedisStoreConfig) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, cfg), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t, RedisStoreConfig{})
	ctx := context.Background()

	turn := turnAt(1)
	turn.Sources = []types.SourceDescriptor{
		{Origin: types.OriginInternal, ID: "doc-1", Title: "Reset guide"},
	}
	require.NoError(t, store.AppendTurn(ctx, "s1", turn))
	require.NoError(t, store.AppendTurn(ctx, "s1", turnAt(2)))

	turns, err := store.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "question 1", turns[0].Question)
	assert.Equal(t, turn.Sources, turns[0].Sources)
}

func TestRedisStoreTrimsToMaxTurns(t *testing.T) {
	store, _ := newTestRedisStore(t, RedisStoreConfig{MaxTurns: 2})
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, store.AppendTurn(ctx, "s1", turnAt(i)))
	}

	turns, err := store.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "question 3", turns[0].Question)
	assert.Equal(t, "question 4", turns[1].Question)
}

func TestRedisStoreSetsTTL(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreConfig{TTL: time.Hour})
	require.NoError(t, store.AppendTurn(context.Background(), "s1", turnAt(1)))

	ttl := mr.TTL("supportflow:session:s1")
	assert.Equal(t, time.Hour, ttl)
}

func TestRedisStoreExpiresSessions(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreConfig{TTL: time.Minute})
	ctx := context.Background()
	require.NoError(t, store.AppendTurn(ctx, "s1", turnAt(1)))

	mr.FastForward(2 * time.Minute)

	turns, err := store.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRedisStoreCorruptEntryFailsLoad(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreConfig{})
	ctx := context.Background()
	require.NoError(t, store.AppendTurn(ctx, "s1", turnAt(1)))

	_, err := mr.RPush("supportflow:session:s1", "{not json")
	require.NoError(t, err)

	_, loadErr := store.LoadHistory(ctx, "s1")
	assert.Error(t, loadErr)
}

func newTestGormStore(t *testing.T, maxTurns int) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := NewGormStore(db, maxTurns)
	require.NoError(t, err)
	return store
}

func TestGormStoreRoundTrip(t *testing.T) {
	store := newTestGormStore(t, 0)
	ctx := context.Background()

	turn := turnAt(1)
	turn.Sources = []types.SourceDescriptor{
		{Origin: types.OriginWeb, ID: "https://example.com/a"},
	}
	require.NoError(t, store.AppendTurn(ctx, "s1", turn))
	require.NoError(t, store.AppendTurn(ctx, "s2", turnAt(2)))

	turns, err := store.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "question 1", turns[0].Question)
	assert.Equal(t, turn.Sources, turns[0].Sources)
}

func TestGormStoreReplaysNewestTurnsChronologically(t *testing.T) {
	store := newTestGormStore(t, 2)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, store.AppendTurn(ctx, "s1", turnAt(i)))
	}

	turns, err := store.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "question 3", turns[0].Question)
	assert.Equal(t, "question 4", turns[1].Question)
}

func TestGormStoreRejectsEmptySession(t *testing.T) {
	store := newTestGormStore(t, 0)
	assert.ErrorIs(t, store.AppendTurn(context.Background(), "", turnAt(1)), ErrInvalidInput)
}
