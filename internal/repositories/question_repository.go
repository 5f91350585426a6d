package repositories

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"gorm.io/gorm"
)

// QuestionRepository interface for question bank operations.
type QuestionRepository interface {
	// Upsert writes the question keyed by (exam_id, question_no); a second
	// write to the same slot overwrites text, options, answer and marks.
	Upsert(ctx context.Context, tx *gorm.DB, question *models.Question) error
	UpsertBatch(ctx context.Context, tx *gorm.DB, questions []models.Question) error
	GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.Question, error)
	GetByExamAndNo(ctx context.Context, tx *gorm.DB, examID string, questionNo int) (*models.Question, error)
	CountByExam(ctx context.Context, tx *gorm.DB, examID string) (int64, error)
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID string) error
}
