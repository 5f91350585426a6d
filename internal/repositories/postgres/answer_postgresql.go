package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// CreateIfAbsent stores the sheet unless one exists for the (exam, user) pair.
// The stored sheet is never modified afterwards.
func (a *AnswerPostgreSQL) CreateIfAbsent(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) (bool, error) {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(sheet)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create answer sheet: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetByExamAndUser retrieves the stored sheet for one (exam, user) pair
func (a *AnswerPostgreSQL) GetByExamAndUser(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.AnswerSheet, error) {
	db := a.getDB(tx)
	var sheet models.AnswerSheet
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		First(&sheet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get answer sheet: %w", err)
	}
	return &sheet, nil
}

// GetByExam retrieves every submitted sheet for an exam
func (a *AnswerPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.AnswerSheet, error) {
	db := a.getDB(tx)
	var sheets []models.AnswerSheet
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("submitted_at ASC").
		Find(&sheets).Error; err != nil {
		return nil, fmt.Errorf("failed to get answer sheets: %w", err)
	}
	return sheets, nil
}

// DeleteByUser removes every sheet a user submitted, used by account deletion
func (a *AnswerPostgreSQL) DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.AnswerSheet{}).Error; err != nil {
		return fmt.Errorf("failed to delete answer sheets by user: %w", err)
	}
	return nil
}

// DeleteByExam removes every sheet of an exam
func (a *AnswerPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID string) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.AnswerSheet{}).Error; err != nil {
		return fmt.Errorf("failed to delete answer sheets by exam: %w", err)
	}
	return nil
}
