package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
)

type analyticsService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
	exams  ExamService
}

func NewAnalyticsService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, exams ExamService) AnalyticsService {
	return &analyticsService{
		repo:   repo,
		db:     db,
		logger: logger,
		exams:  exams,
	}
}

func (s *analyticsService) Leaderboard(ctx context.Context, examID, userID string) (*LeaderboardResponse, error) {
	allowed, err := s.exams.CanAccess(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, examID, "exam", "read_leaderboard", "exam is not assigned to any of your groups")
	}

	rows, err := s.repo.Analytics().Leaderboard(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	return &LeaderboardResponse{
		ExamID:  examID,
		Entries: rankEntries(rows),
	}, nil
}

func (s *analyticsService) UserHistory(ctx context.Context, userID string) ([]models.Analytic, error) {
	history, err := s.repo.Analytics().GetByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return history, nil
}

func (s *analyticsService) ExamResult(ctx context.Context, examID, userID string) (*models.Analytic, error) {
	result, err := s.repo.Analytics().GetByExamAndUser(ctx, nil, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return result, nil
}

// ExportLeaderboard renders the ranking as an xlsx workbook. Only the exam
// creator may export.
func (s *analyticsService) ExportLeaderboard(ctx context.Context, examID, userID string) ([]byte, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, examID, "exam", "export", "only the exam creator can export results")
	}

	rows, err := s.repo.Analytics().Leaderboard(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leaderboard"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Rank", "Username", "Marks", "Total Marks", "Accuracy (%)", "Correct", "Wrong", "Unattempted", "Duration (s)", "Recorded At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for rank, row := range rows {
		values := []interface{}{
			rank + 1,
			row.Username,
			row.MarksObtained,
			row.TotalMarks,
			row.Accuracy,
			row.Correct,
			row.Wrong,
			row.Unattempted,
			row.DurationSeconds,
			row.RecordedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rank+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "leaderboard exported", "exam_id", examID, "rows", len(rows))
	return buf.Bytes(), nil
}

// rankEntries numbers rows in storage order, which is already the display
// order.
func rankEntries(rows []models.Analytic) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank:            i + 1,
			UserID:          row.UserID,
			Username:        row.Username,
			MarksObtained:   row.MarksObtained,
			TotalMarks:      row.TotalMarks,
			Accuracy:        row.Accuracy,
			DurationSeconds: row.DurationSeconds,
			RecordedAt:      row.RecordedAt,
		})
	}
	return entries
}
