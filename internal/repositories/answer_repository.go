package repositories

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"gorm.io/gorm"
)

// AnswerRepository interface for submitted answer sheets.
type AnswerRepository interface {
	// CreateIfAbsent stores the sheet unless one already exists for the same
	// (exam_id, user_id); the first submission wins and later ones report
	// created=false without modifying the stored row.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) (bool, error)
	GetByExamAndUser(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.AnswerSheet, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.AnswerSheet, error)
	DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) error
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID string) error
}
