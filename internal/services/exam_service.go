package services

import (
	"context"
	"encoding/json"
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

type examService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) ExamService {
	return &examService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

func (s *examService) getExam(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if verrs := s.validator.GetBusinessValidator().ValidateExamCreate(req); len(verrs) > 0 {
		return nil, verrs
	}

	// Assigned groups must exist and belong to the creator before the exam
	// is written; a bad group id fails the whole request.
	for _, groupID := range req.GroupIDs {
		group, err := s.repo.Group().GetByID(ctx, nil, groupID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrGroupNotFound
			}
			return nil, fmt.Errorf("failed to get group: %w", err)
		}
		if group.CreatedBy != creatorID {
			return nil, NewPermissionError(creatorID, groupID, "group", "assign_exam", "only the group admin can assign exams to it")
		}
	}

	exam := &models.Exam{
		ID:        uuid.New().String(),
		Name:      req.Name,
		CreatedBy: creatorID,
		Duration:  req.Duration,
		Linear:    req.Linear,
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().Create(ctx, nil, exam); err != nil {
			return err
		}
		for _, groupID := range req.GroupIDs {
			if _, err := txRepo.Exam().AssignToGroup(ctx, nil, &models.ExamGroup{
				ExamID:  exam.ID,
				GroupID: groupID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.InfoContext(ctx, "exam created", "exam_id", exam.ID, "creator_id", creatorID, "groups", len(req.GroupIDs))

	if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventExamCreated, map[string]interface{}{
		"exam_id":    exam.ID,
		"creator_id": creatorID,
		"duration":   exam.Duration,
	})); pubErr != nil {
		s.logger.WarnContext(ctx, "failed to publish exam created event", "error", pubErr)
	}

	return &ExamResponse{Exam: exam, IsCreator: true}, nil
}

func (s *examService) GetByID(ctx context.Context, id, userID string) (*ExamResponse, error) {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, err := s.CanAccess(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, id, "exam", "read", "exam is not assigned to any of your groups")
	}

	count, err := s.repo.Question().CountByExam(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	started := false
	if _, err := s.repo.Exam().GetTimer(ctx, nil, id, userID); err == nil {
		started = true
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get timer: %w", err)
	}

	finished, err := s.repo.Exam().HasFinished(ctx, nil, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check finish state: %w", err)
	}

	return &ExamResponse{
		Exam:          exam,
		QuestionCount: int(count),
		IsCreator:     exam.CreatedBy == userID,
		HasStarted:    started,
		HasFinished:   finished,
	}, nil
}

func (s *examService) ListForUser(ctx context.Context, userID string) (*ExamListResponse, error) {
	exams, err := s.repo.Exam().GetVisibleToUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	out := make([]*ExamResponse, 0, len(exams))
	for i := range exams {
		e := exams[i]
		out = append(out, &ExamResponse{Exam: &e, IsCreator: e.CreatedBy == userID})
	}
	return &ExamListResponse{Exams: out, Total: int64(len(out))}, nil
}

func (s *examService) Delete(ctx context.Context, id, userID string) error {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return err
	}
	if exam.CreatedBy != userID {
		return NewPermissionError(userID, id, "exam", "delete", "only the exam creator can delete it")
	}

	if err := s.repo.Exam().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.InfoContext(ctx, "exam deleted", "exam_id", id, "user_id", userID)
	return nil
}

func (s *examService) AssignToGroup(ctx context.Context, examID, groupID, userID string) error {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return err
	}
	if exam.CreatedBy != userID {
		return NewPermissionError(userID, examID, "exam", "assign", "only the exam creator can assign it")
	}

	group, err := s.repo.Group().GetByID(ctx, nil, groupID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to get group: %w", err)
	}
	if group.CreatedBy != userID {
		return NewPermissionError(userID, groupID, "group", "assign_exam", "only the group admin can assign exams to it")
	}

	if _, err := s.repo.Exam().AssignToGroup(ctx, nil, &models.ExamGroup{
		ExamID:  examID,
		GroupID: groupID,
	}); err != nil {
		return fmt.Errorf("failed to assign exam: %w", err)
	}
	return nil
}

// SaveQuestions writes the whole set keyed by question number; numbers already
// present are overwritten; numbers absent from the request are left alone.
func (s *examService) SaveQuestions(ctx context.Context, examID string, req *QuestionSetSaveRequest, userID string) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if verrs := s.validator.GetBusinessValidator().ValidateQuestionSet(req); len(verrs) > 0 {
		return verrs
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return err
	}
	if exam.CreatedBy != userID {
		return NewPermissionError(userID, examID, "exam", "save_questions", "only the exam creator can edit the question set")
	}

	questions := make([]models.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		question, err := buildQuestion(examID, &q)
		if err != nil {
			return err
		}
		questions = append(questions, *question)
	}

	if err := s.repo.Question().UpsertBatch(ctx, nil, questions); err != nil {
		return fmt.Errorf("failed to save questions: %w", err)
	}

	s.logger.InfoContext(ctx, "question set saved", "exam_id", examID, "count", len(questions))
	return nil
}

func (s *examService) GetQuestions(ctx context.Context, examID, userID string) ([]QuestionView, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.CanAccess(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, examID, "exam", "read", "exam is not assigned to any of your groups")
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	return toQuestionViews(questions, exam.CreatedBy == userID), nil
}

// GetMaterials flattens the study materials of every assigned group together
// with files uploaded against the exam itself.
func (s *examService) GetMaterials(ctx context.Context, examID, userID string) (*ExamMaterialsResponse, error) {
	if _, err := s.getExam(ctx, examID); err != nil {
		return nil, err
	}

	allowed, err := s.CanAccess(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, examID, "exam", "read", "exam is not assigned to any of your groups")
	}

	assignments, err := s.repo.Exam().GetAssignedGroups(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam groups: %w", err)
	}

	resp := &ExamMaterialsResponse{
		GroupMaterials: []models.GroupMaterial{},
		Uploaded:       []models.ExamMaterial{},
	}
	for _, a := range assignments {
		materials, err := s.repo.Group().GetMaterials(ctx, nil, a.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to get group materials: %w", err)
		}
		resp.GroupMaterials = append(resp.GroupMaterials, materials...)
	}

	uploaded, err := s.repo.Material().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam materials: %w", err)
	}
	resp.Uploaded = append(resp.Uploaded, uploaded...)

	return resp, nil
}

func (s *examService) GetStats(ctx context.Context, examID, userID string) (*repositories.ExamStats, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, examID, "exam", "read_stats", "only the exam creator can view its statistics")
	}

	stats, err := s.repo.Exam().GetStats(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam stats: %w", err)
	}
	return stats, nil
}

func (s *examService) GetAnswerSheets(ctx context.Context, examID, callerID, userID string) ([]AnswerSheetView, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.CreatedBy != callerID {
		return nil, NewPermissionError(callerID, examID, "exam", "read_answers", "only the exam creator can read submitted sheets")
	}

	var sheets []models.AnswerSheet
	if userID != "" {
		sheet, err := s.repo.Answer().GetByExamAndUser(ctx, nil, examID, userID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return []AnswerSheetView{}, nil
			}
			return nil, fmt.Errorf("failed to get answer sheet: %w", err)
		}
		sheets = []models.AnswerSheet{*sheet}
	} else {
		sheets, err = s.repo.Answer().GetByExam(ctx, nil, examID)
		if err != nil {
			return nil, fmt.Errorf("failed to get answer sheets: %w", err)
		}
	}

	views := make([]AnswerSheetView, 0, len(sheets))
	for i := range sheets {
		var answers []string
		if err := json.Unmarshal(sheets[i].Answers, &answers); err != nil {
			return nil, fmt.Errorf("failed to decode answer sheet: %w", err)
		}
		views = append(views, AnswerSheetView{
			UserID:      sheets[i].UserID,
			Username:    sheets[i].Username,
			Answers:     answers,
			SubmittedAt: sheets[i].SubmittedAt,
		})
	}
	return views, nil
}

// CanAccess admits the creator and members of any assigned group.
func (s *examService) CanAccess(ctx context.Context, examID, userID string) (bool, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return false, err
	}
	if exam.CreatedBy == userID {
		return true, nil
	}

	assignments, err := s.repo.Exam().GetAssignedGroups(ctx, nil, examID)
	if err != nil {
		return false, fmt.Errorf("failed to get exam groups: %w", err)
	}
	for _, a := range assignments {
		isMember, err := s.repo.Group().IsMember(ctx, nil, a.GroupID, userID)
		if err != nil {
			return false, fmt.Errorf("failed to check membership: %w", err)
		}
		if isMember {
			return true, nil
		}
	}
	return false, nil
}

// buildQuestion converts a validated save request into the stored model.
func buildQuestion(examID string, q *QuestionSaveRequest) (*models.Question, error) {
	question := &models.Question{
		ID:         uuid.New().String(),
		ExamID:     examID,
		QuestionNo: q.QuestionNo,
		Type:       q.Type,
		Text:       q.Text,
		Answer:     q.Answer,
		Marks:      q.Marks,
	}
	if len(q.Options) > 0 {
		raw, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		question.Options = raw
	}
	now := time.Now().UTC()
	question.CreatedAt = now
	question.UpdatedAt = now
	return question, nil
}

// toQuestionViews projects stored questions for a viewer. Answers are kept
// only for the exam creator.
func toQuestionViews(questions []models.Question, includeAnswers bool) []QuestionView {
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		view := QuestionView{
			QuestionNo: q.QuestionNo,
			Type:       q.Type,
			Text:       q.Text,
			Marks:      q.Marks,
		}
		if len(q.Options) > 0 {
			var options []string
			if err := json.Unmarshal(q.Options, &options); err == nil {
				view.Options = options
			}
		}
		if includeAnswers {
			view.Answer = q.Answer
		}
		views = append(views, view)
	}
	return views
}
