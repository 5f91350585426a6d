package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
)

type ChatPostgreSQL struct {
	db *gorm.DB
}

func NewChatPostgreSQL(db *gorm.DB) repositories.ChatRepository {
	return &ChatPostgreSQL{db: db}
}

func (c *ChatPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

// Create persists one room message
func (c *ChatPostgreSQL) Create(ctx context.Context, tx *gorm.DB, message *models.ChatMessage) error {
	db := c.getDB(tx)
	if err := db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

// GetByRoom retrieves room history ordered by sent_at ascending
func (c *ChatPostgreSQL) GetByRoom(ctx context.Context, tx *gorm.DB, filters repositories.ChatHistoryFilters) ([]models.ChatMessage, int64, error) {
	db := c.getDB(tx)
	query := db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("room_id = ?", filters.RoomID)

	if filters.Since != nil {
		query = query.Where("sent_at > ?", *filters.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count chat messages: %w", err)
	}

	query = query.Order("sent_at ASC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var messages []models.ChatMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get chat messages: %w", err)
	}

	return messages, total, nil
}

// DeleteBySender removes a user's messages, used by account deletion
func (c *ChatPostgreSQL) DeleteBySender(ctx context.Context, tx *gorm.DB, senderID string) error {
	db := c.getDB(tx)
	if err := db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Delete(&models.ChatMessage{}).Error; err != nil {
		return fmt.Errorf("failed to delete chat messages by sender: %w", err)
	}
	return nil
}

// DeleteByRoom removes the whole history of a room
func (c *ChatPostgreSQL) DeleteByRoom(ctx context.Context, tx *gorm.DB, roomID string) error {
	db := c.getDB(tx)
	if err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&models.ChatMessage{}).Error; err != nil {
		return fmt.Errorf("failed to delete chat messages by room: %w", err)
	}
	return nil
}
