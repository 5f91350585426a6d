package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/clients"
	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

const defaultMarksPerQuestion = 1.0

type generationService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	llm            *clients.LLMClient
	extraction     *clients.ExtractionClient
	retrieval      *clients.RetrievalClient
	eventPublisher events.EventPublisher
}

func NewGenerationService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, llm *clients.LLMClient, extraction *clients.ExtractionClient, retrieval *clients.RetrievalClient, eventPublisher events.EventPublisher) GenerationService {
	return &generationService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		llm:            llm,
		extraction:     extraction,
		retrieval:      retrieval,
		eventPublisher: eventPublisher,
	}
}

// Generate produces a question set with the model and saves it into the
// exam's numbered slots, overwriting previous content.
func (s *generationService) Generate(ctx context.Context, examID string, req *GenerateQuestionsRequest, userID string) (*GeneratedQuestionsResponse, error) {
	if s.llm == nil {
		return nil, ErrGenerationNotConfigured
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, NewPermissionError(userID, examID, "exam", "generate_questions", "only the exam creator can generate questions")
	}

	materialContext := ""
	if req.UseMaterials {
		materialContext = s.materialContext(ctx, examID, req.Topic, req.MaterialKeys)
	}

	generated, raw, err := s.llm.GenerateQuestions(ctx, req.Topic, req.QuestionCount, req.Types, materialContext)
	if err != nil {
		return nil, NewExternalServiceError("llm", "generate_questions", raw, err)
	}

	marksPer := req.MarksPer
	if marksPer <= 0 {
		marksPer = defaultMarksPerQuestion
	}

	questions, err := normalizeGenerated(examID, generated, marksPer)
	if err != nil {
		return nil, NewExternalServiceError("llm", "generate_questions", raw, err)
	}

	if err := s.repo.Question().UpsertBatch(ctx, nil, questions); err != nil {
		return nil, fmt.Errorf("failed to save generated questions: %w", err)
	}

	s.logger.InfoContext(ctx, "questions generated",
		"exam_id", examID,
		"count", len(questions),
		"with_materials", materialContext != "",
	)

	if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventQuestionsGenerated, map[string]interface{}{
		"exam_id": examID,
		"count":   len(questions),
		"topic":   req.Topic,
	})); pubErr != nil {
		s.logger.WarnContext(ctx, "failed to publish questions generated event", "error", pubErr)
	}

	return &GeneratedQuestionsResponse{
		ExamID:    examID,
		Questions: toQuestionViews(questions, true),
	}, nil
}

// materialContext assembles prompt context from the exam's materials. With
// caller-selected keys the retrieval index is queried scoped to those
// objects; without keys the full extracted text of every exam material goes
// in, falling back to a topic query against the index. Any failure degrades
// to generation without material context.
func (s *generationService) materialContext(ctx context.Context, examID, topic string, keys []string) string {
	if len(keys) > 0 {
		return s.retrievalContext(ctx, examID, topic, keys)
	}

	if text := s.fullMaterialText(ctx, examID); text != "" {
		return text
	}
	return s.retrievalContext(ctx, examID, topic, nil)
}

func (s *generationService) retrievalContext(ctx context.Context, examID, topic string, keys []string) string {
	if s.retrieval == nil || !s.retrieval.Enabled() {
		return ""
	}
	chunks, err := s.retrieval.Query(ctx, examID, topic, 8, keys)
	if err != nil {
		s.logger.WarnContext(ctx, "retrieval query failed, generating without materials",
			"exam_id", examID, "error", err)
		return ""
	}
	return strings.Join(chunks, "\n\n")
}

// fullMaterialText extracts every material attached to the exam. A material
// that fails to extract is skipped, not fatal.
func (s *generationService) fullMaterialText(ctx context.Context, examID string) string {
	if s.extraction == nil || !s.extraction.Enabled() {
		return ""
	}

	materials, err := s.repo.Material().GetByExam(ctx, nil, examID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list exam materials", "exam_id", examID, "error", err)
		return ""
	}

	var parts []string
	for i := range materials {
		text, err := s.extraction.ExtractText(ctx, materials[i].ObjectKey)
		if err != nil {
			s.logger.WarnContext(ctx, "material extraction failed, skipping",
				"object_key", materials[i].ObjectKey, "error", err)
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n")
}

// IngestMaterial extracts text from one uploaded object and indexes it for
// retrieval. Failures are logged and the material is skipped; ingestion never
// blocks the upload flow.
func (s *generationService) IngestMaterial(ctx context.Context, material *models.ExamMaterial) {
	if s.extraction == nil || !s.extraction.Enabled() || s.retrieval == nil || !s.retrieval.Enabled() {
		return
	}

	scopeID := ""
	switch {
	case material.ExamID != nil:
		scopeID = *material.ExamID
	case material.ClassID != nil:
		scopeID = *material.ClassID
	default:
		return
	}

	text, err := s.extraction.ExtractText(ctx, material.ObjectKey)
	if err != nil {
		s.logger.WarnContext(ctx, "material extraction failed, skipping",
			"object_key", material.ObjectKey, "error", err)
		return
	}
	if strings.TrimSpace(text) == "" {
		s.logger.WarnContext(ctx, "material produced no text, skipping",
			"object_key", material.ObjectKey)
		return
	}

	if err := s.retrieval.Index(ctx, scopeID, material.ObjectKey, text); err != nil {
		s.logger.WarnContext(ctx, "material indexing failed, skipping",
			"object_key", material.ObjectKey, "error", err)
		return
	}

	s.logger.InfoContext(ctx, "material ingested", "object_key", material.ObjectKey, "scope_id", scopeID)

	if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventMaterialIngested, map[string]string{
		"object_key": material.ObjectKey,
		"scope_id":   scopeID,
	})); pubErr != nil {
		s.logger.WarnContext(ctx, "failed to publish material ingested event", "error", pubErr)
	}
}

// normalizeGenerated converts model output into stored questions, enforcing
// the same shape rules a manual save goes through. A malformed item fails the
// whole set so a partial bank is never written.
func normalizeGenerated(examID string, generated []clients.GeneratedQuestion, marksPer float64) ([]models.Question, error) {
	if len(generated) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}

	now := time.Now().UTC()
	seen := make(map[int]bool, len(generated))
	questions := make([]models.Question, 0, len(generated))

	for i, g := range generated {
		questionNo := g.QuestionNo
		if questionNo <= 0 {
			questionNo = i + 1
		}
		if seen[questionNo] {
			return nil, fmt.Errorf("model returned duplicate question number %d", questionNo)
		}
		seen[questionNo] = true

		qType, err := normalizeQuestionType(g.Type)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(g.Question) == "" {
			return nil, fmt.Errorf("question %d has empty text", questionNo)
		}
		if strings.TrimSpace(g.Answer) == "" {
			return nil, fmt.Errorf("question %d has empty answer", questionNo)
		}

		question := models.Question{
			ID:         uuid.New().String(),
			ExamID:     examID,
			QuestionNo: questionNo,
			Type:       qType,
			Text:       strings.TrimSpace(g.Question),
			Answer:     strings.TrimSpace(g.Answer),
			Marks:      marksPer,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		switch qType {
		case models.QuestionMCQ:
			if len(g.Additional) != models.MCQOptionCount {
				return nil, fmt.Errorf("question %d: MCQ needs exactly %d options, got %d", questionNo, models.MCQOptionCount, len(g.Additional))
			}
			if !containsFold(g.Additional, question.Answer) {
				return nil, fmt.Errorf("question %d: answer is not one of the options", questionNo)
			}
			raw, err := json.Marshal(g.Additional)
			if err != nil {
				return nil, fmt.Errorf("question %d: failed to encode options: %w", questionNo, err)
			}
			question.Options = raw
		case models.QuestionTrueFalse:
			if !strings.EqualFold(question.Answer, "True") && !strings.EqualFold(question.Answer, "False") {
				return nil, fmt.Errorf("question %d: true/false answer must be True or False", questionNo)
			}
		}

		questions = append(questions, question)
	}

	return questions, nil
}

// normalizeQuestionType maps model output variants onto the stored enum.
func normalizeQuestionType(t string) (models.QuestionType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(t, "-", ""), "_", "")) {
	case "mcq", "multiplechoice":
		return models.QuestionMCQ, nil
	case "truefalse", "boolean":
		return models.QuestionTrueFalse, nil
	case "fillblank", "fillintheblank", "fillintheblanks":
		return models.QuestionFillBlank, nil
	default:
		return "", fmt.Errorf("unknown question type %q", t)
	}
}

func containsFold(options []string, answer string) bool {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), answer) {
			return true
		}
	}
	return false
}
