package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

// submissionGrace absorbs network latency on submissions that left the client
// before the deadline.
const submissionGrace = 30 * time.Second

type sessionService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	exams          ExamService
	eventPublisher events.EventPublisher
}

func NewSessionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, exams ExamService, eventPublisher events.EventPublisher) SessionService {
	return &sessionService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		exams:          exams,
		eventPublisher: eventPublisher,
	}
}

// Start arms the countdown and hands back the question set without answers.
// Concurrent and repeated starts all observe the same deadline.
func (s *sessionService) Start(ctx context.Context, examID, userID string) (*StartExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	allowed, err := s.exams.CanAccess(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, examID, "exam", "start", "exam is not assigned to any of your groups")
	}

	finished, err := s.repo.Exam().HasFinished(ctx, nil, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check finish state: %w", err)
	}
	if finished {
		return nil, ErrExamFinished
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrExamHasNoQuestions
	}

	now := time.Now().UTC()
	timer, armed, err := s.repo.Exam().ArmTimer(ctx, nil, &models.ExamTimer{
		ExamID:    examID,
		UserID:    userID,
		Deadline:  now.Add(time.Duration(exam.Duration) * time.Minute),
		StartedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to arm timer: %w", err)
	}

	if armed {
		s.logger.InfoContext(ctx, "exam started", "exam_id", examID, "user_id", userID, "deadline", timer.Deadline)
		if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventExamStarted, map[string]interface{}{
			"exam_id":  examID,
			"user_id":  userID,
			"deadline": timer.Deadline,
		})); pubErr != nil {
			s.logger.WarnContext(ctx, "failed to publish exam started event", "error", pubErr)
		}
	}

	return &StartExamResponse{
		ExamID:         examID,
		Deadline:       timer.Deadline,
		StartedAt:      timer.StartedAt,
		AlreadyStarted: !armed,
		Questions:      toQuestionViews(questions, false),
	}, nil
}

// SubmitAnswers grades server-side and stores sheet, result and finish mark in
// one transaction. The first submission wins; repeats get the stored result.
func (s *sessionService) SubmitAnswers(ctx context.Context, examID, userID string, req *SubmitAnswersRequest) (*SubmitAnswersResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.Exam().GetByID(ctx, nil, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	allowed, err := s.exams.CanAccess(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, examID, "exam", "submit", "exam is not assigned to any of your groups")
	}

	timer, err := s.repo.Exam().GetTimer(ctx, nil, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotStarted
		}
		return nil, fmt.Errorf("failed to get timer: %w", err)
	}

	now := time.Now().UTC()
	if now.After(timer.Deadline.Add(submissionGrace)) {
		return nil, ErrDeadlinePassed
	}

	finished, err := s.repo.Exam().HasFinished(ctx, nil, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check finish state: %w", err)
	}
	if finished {
		return s.storedResult(ctx, examID, userID)
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		duration = int(now.Sub(timer.StartedAt).Seconds())
	}

	accepted, result, err := s.recordSheet(ctx, examID, user, questions, req.Answers, duration, now)
	if err != nil {
		return nil, err
	}

	if !accepted {
		// Another submission won the insert race.
		return s.storedResult(ctx, examID, userID)
	}

	s.logger.InfoContext(ctx, "answers submitted",
		"exam_id", examID,
		"user_id", userID,
		"marks", result.MarksObtained,
		"correct", result.Correct,
	)

	if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventAttemptRecorded, map[string]interface{}{
		"exam_id":        examID,
		"user_id":        userID,
		"marks_obtained": result.MarksObtained,
		"total_marks":    result.TotalMarks,
		"accuracy":       result.Accuracy,
	})); pubErr != nil {
		s.logger.WarnContext(ctx, "failed to publish attempt recorded event", "error", pubErr)
	}

	return &SubmitAnswersResponse{Accepted: true, Result: &result}, nil
}

// recordSheet grades server-side and writes sheet, result and finish mark in
// one transaction. Stored answers never carry client-computed scores; the
// sheet is raw input and the grade is derived here. Returns false when an
// earlier submission already holds the row.
func (s *sessionService) recordSheet(ctx context.Context, examID string, user *models.User, questions []models.Question, answers []string, duration int, now time.Time) (bool, GradeSummary, error) {
	// The sheet always holds one entry per question: short submissions are
	// padded with blanks, extra entries are dropped.
	normalized := make([]string, len(questions))
	copy(normalized, answers)

	result := Grade(questions, normalized)

	rawAnswers, err := json.Marshal(normalized)
	if err != nil {
		return false, result, fmt.Errorf("failed to encode answers: %w", err)
	}

	accepted := false
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		created, err := txRepo.Answer().CreateIfAbsent(ctx, nil, &models.AnswerSheet{
			ID:          uuid.New().String(),
			ExamID:      examID,
			UserID:      user.ID,
			Username:    user.Username,
			Answers:     rawAnswers,
			SubmittedAt: now,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		accepted = true

		if _, err := txRepo.Analytics().CreateIfAbsent(ctx, nil, &models.Analytic{
			ID:              uuid.New().String(),
			ExamID:          examID,
			UserID:          user.ID,
			Username:        user.Username,
			TotalQuestions:  result.TotalQuestions,
			Correct:         result.Correct,
			Wrong:           result.Wrong,
			Unattempted:     result.Unattempted,
			MarksObtained:   result.MarksObtained,
			TotalMarks:      result.TotalMarks,
			Accuracy:        result.Accuracy,
			DurationSeconds: duration,
			RecordedAt:      now,
		}); err != nil {
			return err
		}

		_, err = txRepo.Exam().MarkFinished(ctx, nil, &models.ExamFinish{
			ExamID:     examID,
			UserID:     user.ID,
			FinishedAt: now,
		})
		return err
	})
	if err != nil {
		return false, result, fmt.Errorf("failed to record submission: %w", err)
	}
	return accepted, result, nil
}

// storedResult reads back the recorded attempt for a repeated submission.
func (s *sessionService) storedResult(ctx context.Context, examID, userID string) (*SubmitAnswersResponse, error) {
	analytic, err := s.repo.Analytics().GetByExamAndUser(ctx, nil, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// Finished without a sheet: the attempt was abandoned.
			return &SubmitAnswersResponse{Accepted: false}, ErrExamFinished
		}
		return nil, fmt.Errorf("failed to get recorded result: %w", err)
	}
	return &SubmitAnswersResponse{
		Accepted: false,
		Result: &GradeSummary{
			TotalQuestions: analytic.TotalQuestions,
			Correct:        analytic.Correct,
			Wrong:          analytic.Wrong,
			Unattempted:    analytic.Unattempted,
			MarksObtained:  analytic.MarksObtained,
			TotalMarks:     analytic.TotalMarks,
			Accuracy:       analytic.Accuracy,
		},
	}, nil
}

// Finish records completion without grading, for abandoned attempts.
func (s *sessionService) Finish(ctx context.Context, examID, userID string) error {
	if _, err := s.repo.Exam().GetByID(ctx, nil, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if _, err := s.repo.Exam().GetTimer(ctx, nil, examID, userID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotStarted
		}
		return fmt.Errorf("failed to get timer: %w", err)
	}

	recorded, err := s.repo.Exam().MarkFinished(ctx, nil, &models.ExamFinish{
		ExamID:     examID,
		UserID:     userID,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to mark finished: %w", err)
	}

	if recorded {
		s.logger.InfoContext(ctx, "exam finished without submission", "exam_id", examID, "user_id", userID)
		if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventExamFinished, map[string]string{
			"exam_id": examID,
			"user_id": userID,
		})); pubErr != nil {
			s.logger.WarnContext(ctx, "failed to publish exam finished event", "error", pubErr)
		}
	}
	return nil
}

// HandleTimeout finalizes an attempt whose deadline passed without a
// submission: an empty sheet is graded and recorded, then the finish mark.
// Attempts that already hold a sheet just get their stored result back.
func (s *sessionService) HandleTimeout(ctx context.Context, examID, userID string) (*SubmitAnswersResponse, error) {
	if _, err := s.repo.Exam().GetByID(ctx, nil, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	timer, err := s.repo.Exam().GetTimer(ctx, nil, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotStarted
		}
		return nil, fmt.Errorf("failed to get timer: %w", err)
	}

	now := time.Now().UTC()
	if now.Before(timer.Deadline.Add(submissionGrace)) {
		return nil, NewBusinessRuleError("deadline_not_reached", "the attempt is still running", map[string]interface{}{
			"exam_id":  examID,
			"deadline": timer.Deadline,
		})
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	duration := int(timer.Deadline.Sub(timer.StartedAt).Seconds())
	accepted, result, err := s.recordSheet(ctx, examID, user, questions, make([]string, len(questions)), duration, now)
	if err != nil {
		return nil, err
	}
	if !accepted {
		resp, err := s.storedResult(ctx, examID, userID)
		if err != nil && !errors.Is(err, ErrExamFinished) {
			return nil, err
		}
		return resp, nil
	}

	s.logger.InfoContext(ctx, "expired attempt finalized", "exam_id", examID, "user_id", userID)

	if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventAttemptRecorded, map[string]interface{}{
		"exam_id":        examID,
		"user_id":        userID,
		"marks_obtained": result.MarksObtained,
		"total_marks":    result.TotalMarks,
		"accuracy":       result.Accuracy,
		"timed_out":      true,
	})); pubErr != nil {
		s.logger.WarnContext(ctx, "failed to publish attempt recorded event", "error", pubErr)
	}

	return &SubmitAnswersResponse{Accepted: true, Result: &result}, nil
}

func (s *sessionService) Status(ctx context.Context, examID, userID string) (*SessionStatusResponse, error) {
	if _, err := s.repo.Exam().GetByID(ctx, nil, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	status := &SessionStatusResponse{ExamID: examID}

	timer, err := s.repo.Exam().GetTimer(ctx, nil, examID, userID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get timer: %w", err)
		}
		return status, nil
	}

	status.Started = true
	status.Deadline = &timer.Deadline
	if remaining := time.Until(timer.Deadline); remaining > 0 {
		status.RemainingSeconds = int(remaining.Seconds())
	}

	finished, err := s.repo.Exam().HasFinished(ctx, nil, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check finish state: %w", err)
	}
	status.Finished = finished

	return status, nil
}
