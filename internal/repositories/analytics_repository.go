package repositories

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"gorm.io/gorm"
)

// AnalyticsRepository interface for per-attempt result records.
type AnalyticsRepository interface {
	// CreateIfAbsent inserts the record unless one exists for the same
	// (exam_id, user_id). The first recorded attempt is immutable.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, analytic *models.Analytic) (bool, error)
	GetByExamAndUser(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.Analytic, error)
	GetByFilters(ctx context.Context, tx *gorm.DB, filters AnalyticFilters) ([]models.Analytic, int64, error)
	GetByUser(ctx context.Context, tx *gorm.DB, userID string) ([]models.Analytic, error)

	// Leaderboard orders by marks descending, then recorded_at ascending,
	// then username ascending.
	Leaderboard(ctx context.Context, tx *gorm.DB, examID string) ([]models.Analytic, error)

	DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) error
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID string) error
}
