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

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

// questionConflictColumns is the (exam, slot) key a re-save overwrites.
var questionConflictColumns = []clause.Column{{Name: "exam_id"}, {Name: "question_no"}}

// Upsert writes a question into its (exam, number) slot, overwriting content
// columns on conflict
func (q *QuestionPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   questionConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{"type", "text", "options", "answer", "marks", "updated_at"}),
		}).
		Create(question).Error
	if err != nil {
		return fmt.Errorf("failed to upsert question: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, fmt.Sprintf("exam:%s:*", question.ExamID))

	return nil
}

// UpsertBatch writes a generated question set in one statement
func (q *QuestionPostgreSQL) UpsertBatch(ctx context.Context, tx *gorm.DB, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	db := q.getDB(tx)
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   questionConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{"type", "text", "options", "answer", "marks", "updated_at"}),
		}).
		CreateInBatches(questions, 100).Error
	if err != nil {
		return fmt.Errorf("failed to upsert questions batch: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, fmt.Sprintf("exam:%s:*", questions[0].ExamID))

	return nil
}

// GetByExam retrieves all questions of an exam ordered by question number,
// with caching
func (q *QuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.Question, error) {
	db := q.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%s:all", examID)
	var questions []models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestions []models.Question
		if err := db.WithContext(ctx).
			Where("exam_id = ?", examID).
			Order("question_no ASC").
			Find(&dbQuestions).Error; err != nil {
			return nil, fmt.Errorf("failed to get questions: %w", err)
		}
		return dbQuestions, nil
	})
	if err != nil {
		return nil, err
	}

	return questions, nil
}

// GetByExamAndNo retrieves one question by its slot
func (q *QuestionPostgreSQL) GetByExamAndNo(ctx context.Context, tx *gorm.DB, examID string, questionNo int) (*models.Question, error) {
	db := q.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND question_no = ?", examID, questionNo).
		First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

// CountByExam counts the questions of an exam
func (q *QuestionPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID string) (int64, error) {
	db := q.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// DeleteByExam removes all questions of an exam
func (q *QuestionPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID string) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.Question{}).Error; err != nil {
		return fmt.Errorf("failed to delete questions: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, fmt.Sprintf("exam:%s:*", examID))

	return nil
}
