package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/validator"
)

const (
	testCreatorID     = "44444444-4444-4444-4444-444444444444"
	testParticipantID = "55555555-5555-5555-5555-555555555555"
)

func mustSheetJSON(t *testing.T, answers []string) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(answers)
	if err != nil {
		t.Fatalf("marshal answers: %v", err)
	}
	return datatypes.JSON(raw)
}

func newExamFixture(t *testing.T) (*examService, *fakeRepo) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := &fakeRepo{
		exam: &fakeExamRepo{
			exams: map[string]*models.Exam{
				testExamID: {ID: testExamID, Name: "Algebra", CreatedBy: testCreatorID, Duration: 30},
			},
		},
		answer: &fakeAnswerRepo{sheets: map[string]*models.AnswerSheet{
			timerKey(testExamID, testParticipantID): {
				ExamID:      testExamID,
				UserID:      testParticipantID,
				Username:    "casey",
				Answers:     mustSheetJSON(t, []string{"4", "False"}),
				SubmittedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			timerKey(testExamID, testUserID): {
				ExamID:      testExamID,
				UserID:      testUserID,
				Username:    "riley",
				Answers:     mustSheetJSON(t, []string{"5", ""}),
				SubmittedAt: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
			},
		}},
	}

	svc := &examService{
		repo:           repo,
		logger:         logger,
		validator:      validator.New(),
		eventPublisher: events.NewMockEventPublisher(logger),
	}
	return svc, repo
}

func TestGetAnswerSheetsCreatorOnly(t *testing.T) {
	svc, _ := newExamFixture(t)
	ctx := context.Background()

	_, err := svc.GetAnswerSheets(ctx, testExamID, testParticipantID, "")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("non-creator got %v, want permission error", err)
	}

	sheets, err := svc.GetAnswerSheets(ctx, testExamID, testCreatorID, "")
	if err != nil {
		t.Fatalf("creator read failed: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("got %d sheets, want 2", len(sheets))
	}
}

func TestGetAnswerSheetsFilterByUser(t *testing.T) {
	svc, _ := newExamFixture(t)
	ctx := context.Background()

	sheets, err := svc.GetAnswerSheets(ctx, testExamID, testCreatorID, testParticipantID)
	if err != nil {
		t.Fatalf("filtered read failed: %v", err)
	}
	if len(sheets) != 1 {
		t.Fatalf("got %d sheets, want 1", len(sheets))
	}
	if sheets[0].UserID != testParticipantID || sheets[0].Username != "casey" {
		t.Errorf("wrong sheet returned: %+v", sheets[0])
	}
	if len(sheets[0].Answers) != 2 || sheets[0].Answers[0] != "4" {
		t.Errorf("answers not decoded: %v", sheets[0].Answers)
	}

	sheets, err = svc.GetAnswerSheets(ctx, testExamID, testCreatorID, "99999999-9999-9999-9999-999999999999")
	if err != nil {
		t.Fatalf("read for user without a sheet failed: %v", err)
	}
	if len(sheets) != 0 {
		t.Errorf("got %d sheets for a user who never submitted, want 0", len(sheets))
	}
}
