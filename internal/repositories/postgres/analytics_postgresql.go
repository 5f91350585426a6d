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

type AnalyticsPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAnalyticsPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnalyticsRepository {
	return &AnalyticsPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AnalyticsPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// CreateIfAbsent records the attempt unless one exists for the (exam, user)
// pair. The first record is immutable; a losing insert reports recorded=false.
func (a *AnalyticsPostgreSQL) CreateIfAbsent(ctx context.Context, tx *gorm.DB, analytic *models.Analytic) (bool, error) {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(analytic)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create analytic: %w", result.Error)
	}

	recorded := result.RowsAffected > 0
	if recorded {
		cache.SafeInvalidatePattern(ctx, a.cacheManager.Leaderboard, fmt.Sprintf("exam:%s*", analytic.ExamID))
		cache.SafeInvalidatePattern(ctx, a.cacheManager.Stats, fmt.Sprintf("exam:%s:*", analytic.ExamID))
	}

	return recorded, nil
}

// GetByExamAndUser retrieves one attempt record
func (a *AnalyticsPostgreSQL) GetByExamAndUser(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.Analytic, error) {
	db := a.getDB(tx)
	var analytic models.Analytic
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		First(&analytic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get analytic: %w", err)
	}
	return &analytic, nil
}

// GetByFilters retrieves attempt records matching the filters with a total count
func (a *AnalyticsPostgreSQL) GetByFilters(ctx context.Context, tx *gorm.DB, filters repositories.AnalyticFilters) ([]models.Analytic, int64, error) {
	db := a.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Analytic{})
	query = a.helpers.ApplyAnalyticFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count analytics: %w", err)
	}

	var analytics []models.Analytic
	query = a.helpers.ApplyPaginationAndSort(query, "recorded_at", "desc", filters.Limit, filters.Offset)
	if err := query.Find(&analytics).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get analytics: %w", err)
	}

	return analytics, total, nil
}

// GetByUser retrieves a user's attempt history, most recent first
func (a *AnalyticsPostgreSQL) GetByUser(ctx context.Context, tx *gorm.DB, userID string) ([]models.Analytic, error) {
	db := a.getDB(tx)
	var analytics []models.Analytic
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("recorded_at DESC").
		Find(&analytics).Error; err != nil {
		return nil, fmt.Errorf("failed to get analytics by user: %w", err)
	}
	return analytics, nil
}

// Leaderboard returns attempt records ranked by marks with deterministic
// tie-breaks, cached briefly because new attempts reshuffle it
func (a *AnalyticsPostgreSQL) Leaderboard(ctx context.Context, tx *gorm.DB, examID string) ([]models.Analytic, error) {
	db := a.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%s", examID)
	var analytics []models.Analytic

	err := a.cacheManager.Leaderboard.CacheOrExecute(ctx, cacheKey, &analytics, cache.LeaderboardCacheConfig.TTL, func() (interface{}, error) {
		var ranked []models.Analytic
		if err := db.WithContext(ctx).
			Where("exam_id = ?", examID).
			Order("marks_obtained DESC").
			Order("recorded_at ASC").
			Order("username ASC").
			Find(&ranked).Error; err != nil {
			return nil, fmt.Errorf("failed to get leaderboard: %w", err)
		}
		return ranked, nil
	})
	if err != nil {
		return nil, err
	}

	return analytics, nil
}

// DeleteByUser removes a user's attempt records, used by account deletion
func (a *AnalyticsPostgreSQL) DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Analytic{}).Error; err != nil {
		return fmt.Errorf("failed to delete analytics by user: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, a.cacheManager.Leaderboard, "exam:*")

	return nil
}

// DeleteByExam removes every attempt record of an exam
func (a *AnalyticsPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID string) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.Analytic{}).Error; err != nil {
		return fmt.Errorf("failed to delete analytics by exam: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, a.cacheManager.Leaderboard, fmt.Sprintf("exam:%s*", examID))

	return nil
}
