package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"chatbot-api/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListBySessionID returns all messages of a session in chronological order,
// id as tiebreaker for equal timestamps.
func (r *MessageRepository) ListBySessionID(sessionID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("session_id = ?", sessionID).
		Order("timestamp ASC").Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) CountBySessionID(sessionID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Message{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}

// CountPerSession returns message counts keyed by session id, one query for
// the whole listing.
func (r *MessageRepository) CountPerSession() (map[uint]int64, error) {
	var rows []struct {
		SessionID uint
		Total     int64
	}
	if err := r.db.Model(&model.Message{}).
		Select("session_id, COUNT(*) AS total").
		Group("session_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count messages per session failed: %w", err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.SessionID] = row.Total
	}
	return counts, nil
}

func (r *MessageRepository) DeleteBySessionID(sessionID uint) error {
	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete messages failed: %w", err)
	}
	return nil
}
