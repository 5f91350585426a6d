package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
)

type MaterialPostgreSQL struct {
	db *gorm.DB
}

func NewMaterialPostgreSQL(db *gorm.DB) repositories.MaterialRepository {
	return &MaterialPostgreSQL{db: db}
}

func (m *MaterialPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return m.db
}

// Create records an uploaded material reference
func (m *MaterialPostgreSQL) Create(ctx context.Context, tx *gorm.DB, material *models.ExamMaterial) error {
	db := m.getDB(tx)
	if err := db.WithContext(ctx).Create(material).Error; err != nil {
		return fmt.Errorf("failed to create exam material: %w", err)
	}
	return nil
}

// GetByExam lists material references uploaded for an exam
func (m *MaterialPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.ExamMaterial, error) {
	db := m.getDB(tx)
	var materials []models.ExamMaterial
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("failed to get exam materials: %w", err)
	}
	return materials, nil
}

// GetByClass lists material references uploaded for a class
func (m *MaterialPostgreSQL) GetByClass(ctx context.Context, tx *gorm.DB, classID string) ([]models.ExamMaterial, error) {
	db := m.getDB(tx)
	var materials []models.ExamMaterial
	if err := db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("created_at ASC").
		Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("failed to get class materials: %w", err)
	}
	return materials, nil
}

// DeleteByExam removes material references of an exam
func (m *MaterialPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID string) error {
	db := m.getDB(tx)
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.ExamMaterial{}).Error; err != nil {
		return fmt.Errorf("failed to delete exam materials: %w", err)
	}
	return nil
}
