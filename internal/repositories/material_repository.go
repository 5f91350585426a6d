package repositories

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"gorm.io/gorm"
)

// MaterialRepository interface for uploaded source material references.
type MaterialRepository interface {
	Create(ctx context.Context, tx *gorm.DB, material *models.ExamMaterial) error
	GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.ExamMaterial, error)
	GetByClass(ctx context.Context, tx *gorm.DB, classID string) ([]models.ExamMaterial, error)
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID string) error
}
