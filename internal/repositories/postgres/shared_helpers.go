package postgres

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers contains common database operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// CountStarted counts users who armed a timer for an exam
func (h *SharedHelpers) CountStarted(ctx context.Context, examID string) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.ExamTimer{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

// CountFinished counts users who completed an exam
func (h *SharedHelpers) CountFinished(ctx context.Context, examID string) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.ExamFinish{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

// ApplyExamFilters applies common filters to exam queries
func (h *SharedHelpers) ApplyExamFilters(query *gorm.DB, filters repositories.ExamFilters) *gorm.DB {
	if filters.CreatedBy != nil {
		query = query.Where("exams.created_by = ?", *filters.CreatedBy)
	}
	if filters.GroupID != nil {
		query = query.Joins("JOIN exam_groups ON exam_groups.exam_id = exams.id").
			Where("exam_groups.group_id = ?", *filters.GroupID)
	}
	if filters.DateFrom != nil {
		query = query.Where("exams.created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("exams.created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyAnalyticFilters applies common filters to analytic queries
func (h *SharedHelpers) ApplyAnalyticFilters(query *gorm.DB, filters repositories.AnalyticFilters) *gorm.DB {
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	// Whitelist allowed sort columns
	allowedSortColumns := map[string]bool{
		"created_at":     true,
		"updated_at":     true,
		"id":             true,
		"name":           true,
		"duration":       true,
		"marks_obtained": true,
		"recorded_at":    true,
		"sent_at":        true,
	}

	// Validate and set sort column
	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	// Validate and set sort order
	if sortOrder != "asc" && sortOrder != "ASC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
