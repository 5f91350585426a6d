package repositories

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"gorm.io/gorm"
)

// ExamRepository interface for exam lifecycle operations.
type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Exam, error)
	GetByFilters(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]models.Exam, int64, error)
	GetVisibleToUser(ctx context.Context, tx *gorm.DB, userID string) ([]models.Exam, error)
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	DeleteByCreator(ctx context.Context, tx *gorm.DB, creatorID string) error

	// Exam to group assignment, insert-if-absent on (exam_id, group_id).
	AssignToGroup(ctx context.Context, tx *gorm.DB, assignment *models.ExamGroup) (bool, error)
	GetAssignedGroups(ctx context.Context, tx *gorm.DB, examID string) ([]models.ExamGroup, error)

	// ArmTimer writes the per-user deadline exactly once. A concurrent or
	// repeated start loses the insert race and reads back the winning row,
	// so every caller observes the same deadline.
	ArmTimer(ctx context.Context, tx *gorm.DB, timer *models.ExamTimer) (*models.ExamTimer, bool, error)
	GetTimer(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.ExamTimer, error)

	// MarkFinished records completion at most once and reports whether this
	// call was the one that recorded it.
	MarkFinished(ctx context.Context, tx *gorm.DB, finish *models.ExamFinish) (bool, error)
	HasFinished(ctx context.Context, tx *gorm.DB, examID, userID string) (bool, error)

	GetStats(ctx context.Context, tx *gorm.DB, examID string) (*ExamStats, error)
}
