package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/supportflow/supportflow/types"
)

// ConversationTurn is the persisted row shape for a turn.
type ConversationTurn struct {
	ID        uint                     `gorm:"primaryKey"`
	SessionID string                   `gorm:"index;size:128;not null"`
	Question  string                   `gorm:"type:text;not null"`
	Answer    string                   `gorm:"type:text;not null"`
	Sources   []types.SourceDescriptor `gorm:"serializer:json"`
	CreatedAt time.Time                `gorm:"index"`
}

// TableName keeps the table name stable across GORM naming strategies.
func (ConversationTurn) TableName() string { return "conversation_turns" }

// GormStore is a SQL-backed conversation store. It archives every turn
// durably; LoadHistory replays only the newest MaxTurns.
type GormStore struct {
	db       *gorm.DB
	maxTurns int
}

// NewGormStore wraps an open GORM handle, migrating the turns table.
func NewGormStore(db *gorm.DB, maxTurns int) (*GormStore, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if err := db.AutoMigrate(&ConversationTurn{}); err != nil {
		return nil, fmt.Errorf("migrate conversation turns: %w", err)
	}
	return &GormStore{db: db, maxTurns: maxTurns}, nil
}

// AppendTurn archives a turn.
func (s *GormStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	if sessionID == "" {
		return ErrInvalidInput
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	row := ConversationTurn{
		SessionID: sessionID,
		Question:  turn.Question,
		Answer:    turn.Answer,
		Sources:   turn.Sources,
		CreatedAt: turn.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// LoadHistory returns the newest MaxTurns turns oldest first.
func (s *GormStore) LoadHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}

	var rows []ConversationTurn
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(s.maxTurns).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// Rows arrive newest first; replay wants chronological order.
	turns := make([]Turn, len(rows))
	for i, row := range rows {
		turns[len(rows)-1-i] = Turn{
			Question:  row.Question,
			Answer:    row.Answer,
			Sources:   row.Sources,
			CreatedAt: row.CreatedAt,
		}
	}
	return turns, nil
}

var _ ConversationStore = (*GormStore)(nil)
