package repositories

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"gorm.io/gorm"
)

// ChatRepository interface for persisted room messages.
type ChatRepository interface {
	Create(ctx context.Context, tx *gorm.DB, message *models.ChatMessage) error
	// GetByRoom returns messages ordered by sent_at ascending.
	GetByRoom(ctx context.Context, tx *gorm.DB, filters ChatHistoryFilters) ([]models.ChatMessage, int64, error)
	DeleteBySender(ctx context.Context, tx *gorm.DB, senderID string) error
	DeleteByRoom(ctx context.Context, tx *gorm.DB, roomID string) error
}
