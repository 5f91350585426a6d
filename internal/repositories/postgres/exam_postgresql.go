package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quizbuzz/exam-service/internal/cache"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

// ===== BASIC CRUD OPERATIONS =====

// Create creates a new exam with its group assignments
func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, fmt.Sprintf("creator:%s:*", exam.CreatedBy))
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Exam, "list:*")

	return nil
}

// GetByID retrieves an exam by ID with caching
func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Exam, error) {
	db := e.getDB(tx)
	cacheKey := fmt.Sprintf("id:%s", id)
	var exam models.Exam

	err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := db.WithContext(ctx).Where("id = ?", id).First(&dbExam).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get exam: %w", err)
		}
		return &dbExam, nil
	})

	if err != nil {
		return nil, err
	}

	return &exam, nil
}

// GetByFilters retrieves exams matching the filters with a total count
func (e *ExamPostgreSQL) GetByFilters(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]models.Exam, int64, error) {
	db := e.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Exam{})
	query = e.helpers.ApplyExamFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}

	var exams []models.Exam
	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get exams: %w", err)
	}

	return exams, total, nil
}

// GetVisibleToUser returns exams the user created plus exams assigned to
// groups the user belongs to
func (e *ExamPostgreSQL) GetVisibleToUser(ctx context.Context, tx *gorm.DB, userID string) ([]models.Exam, error) {
	db := e.getDB(tx)
	var exams []models.Exam
	err := db.WithContext(ctx).
		Distinct("exams.*").
		Joins("LEFT JOIN exam_groups ON exam_groups.exam_id = exams.id").
		Joins("LEFT JOIN group_members ON group_members.group_id = exam_groups.group_id").
		Where("exams.created_by = ? OR group_members.user_id = ?", userID, userID).
		Order("exams.created_at DESC").
		Find(&exams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get exams for user: %w", err)
	}
	return exams, nil
}

// Delete removes an exam with its questions, sheets, timers and assignments
func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	db := e.getDB(tx)

	var exam models.Exam
	if err := db.WithContext(ctx).Select("id, created_by").Where("id = ?", id).First(&exam).Error; err != nil {
		return fmt.Errorf("failed to get exam before delete: %w", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("exam_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam questions: %w", err)
		}
		if err := tx.WithContext(ctx).Where("exam_id = ?", id).Delete(&models.AnswerSheet{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam answer sheets: %w", err)
		}
		if err := tx.WithContext(ctx).Where("exam_id = ?", id).Delete(&models.ExamTimer{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam timers: %w", err)
		}
		if err := tx.WithContext(ctx).Where("exam_id = ?", id).Delete(&models.ExamFinish{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam finishes: %w", err)
		}
		if err := tx.WithContext(ctx).Where("exam_id = ?", id).Delete(&models.ExamGroup{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam group assignments: %w", err)
		}
		if err := tx.WithContext(ctx).Where("exam_id = ?", id).Delete(&models.Analytic{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam analytics: %w", err)
		}
		if err := tx.WithContext(ctx).Where("id = ?", id).Delete(&models.Exam{}).Error; err != nil {
			return fmt.Errorf("failed to delete exam: %w", err)
		}
		return nil
	})

	if err != nil {
		return err
	}

	cache.InvalidateExamCache(ctx, e.cacheManager, id, exam.CreatedBy)

	return nil
}

// DeleteByCreator removes every exam a user created, used by account deletion
func (e *ExamPostgreSQL) DeleteByCreator(ctx context.Context, tx *gorm.DB, creatorID string) error {
	db := e.getDB(tx)

	var examIDs []string
	if err := db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("created_by = ?", creatorID).
		Pluck("id", &examIDs).Error; err != nil {
		return fmt.Errorf("failed to list exams by creator: %w", err)
	}

	for _, id := range examIDs {
		if err := e.Delete(ctx, db, id); err != nil {
			return err
		}
	}

	return nil
}

// ===== GROUP ASSIGNMENT =====

// AssignToGroup inserts the assignment row unless it already exists
func (e *ExamPostgreSQL) AssignToGroup(ctx context.Context, tx *gorm.DB, assignment *models.ExamGroup) (bool, error) {
	db := e.getDB(tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}, {Name: "group_id"}},
			DoNothing: true,
		}).
		Create(assignment)
	if result.Error != nil {
		return false, fmt.Errorf("failed to assign exam to group: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetAssignedGroups lists the group assignments of an exam
func (e *ExamPostgreSQL) GetAssignedGroups(ctx context.Context, tx *gorm.DB, examID string) ([]models.ExamGroup, error) {
	db := e.getDB(tx)
	var assignments []models.ExamGroup
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("failed to get exam group assignments: %w", err)
	}
	return assignments, nil
}

// ===== TIMER AND FINISH =====

// ArmTimer inserts the per-user deadline if absent and reads the stored row
// back. Losing the insert race is not an error; the caller gets the winning
// deadline either way, along with whether this call armed it.
func (e *ExamPostgreSQL) ArmTimer(ctx context.Context, tx *gorm.DB, timer *models.ExamTimer) (*models.ExamTimer, bool, error) {
	db := e.getDB(tx)

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(timer)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to arm exam timer: %w", result.Error)
	}

	armed := result.RowsAffected > 0
	if armed {
		return timer, true, nil
	}

	// Another start won the race; read its deadline back.
	var existing models.ExamTimer
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", timer.ExamID, timer.UserID).
		First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to read back exam timer: %w", err)
	}

	return &existing, false, nil
}

// GetTimer retrieves the armed timer for one (exam, user) pair
func (e *ExamPostgreSQL) GetTimer(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.ExamTimer, error) {
	db := e.getDB(tx)
	var timer models.ExamTimer
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		First(&timer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get exam timer: %w", err)
	}
	return &timer, nil
}

// MarkFinished inserts the finish row if absent
func (e *ExamPostgreSQL) MarkFinished(ctx context.Context, tx *gorm.DB, finish *models.ExamFinish) (bool, error) {
	db := e.getDB(tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(finish)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark exam finished: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// HasFinished checks whether a user completed the exam
func (e *ExamPostgreSQL) HasFinished(ctx context.Context, tx *gorm.DB, examID, userID string) (bool, error) {
	db := e.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.ExamFinish{}).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check exam finish: %w", err)
	}
	return count > 0, nil
}

// ===== STATISTICS =====

// GetStats returns question, participation and score aggregates for one exam
func (e *ExamPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, examID string) (*repositories.ExamStats, error) {
	db := e.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%s", examID)
	var stats repositories.ExamStats

	err := e.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		var dbStats repositories.ExamStats

		type questionAgg struct {
			Count int
			Total float64
		}
		var qa questionAgg
		if err := db.WithContext(ctx).
			Model(&models.Question{}).
			Select("COUNT(*) as count, COALESCE(SUM(marks), 0) as total").
			Where("exam_id = ?", examID).
			Scan(&qa).Error; err != nil {
			return nil, fmt.Errorf("failed to aggregate questions: %w", err)
		}
		dbStats.QuestionCount = qa.Count
		dbStats.TotalMarks = qa.Total

		started, err := e.helpers.CountStarted(ctx, examID)
		if err != nil {
			return nil, fmt.Errorf("failed to count started: %w", err)
		}
		dbStats.StartedCount = int(started)

		finished, err := e.helpers.CountFinished(ctx, examID)
		if err != nil {
			return nil, fmt.Errorf("failed to count finished: %w", err)
		}
		dbStats.FinishedCount = int(finished)

		var avg float64
		if err := db.WithContext(ctx).
			Model(&models.Analytic{}).
			Select("COALESCE(AVG(marks_obtained), 0)").
			Where("exam_id = ?", examID).
			Scan(&avg).Error; err != nil {
			return nil, fmt.Errorf("failed to average marks: %w", err)
		}
		dbStats.AverageMarks = avg

		return &dbStats, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
