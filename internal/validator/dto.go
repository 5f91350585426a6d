package validator

import (
	"github.com/quizbuzz/exam-service/internal/models"
)

// SignUpRequest represents the request structure for account creation
type SignUpRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest represents the request structure for authentication
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GroupCreateRequest represents the request structure for creating groups
type GroupCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// GroupMaterialRequest attaches a study material to a group. Either a link or
// an uploaded object key must be present.
type GroupMaterialRequest struct {
	Title     string  `json:"title" validate:"required,max=255"`
	Link      *string `json:"link" validate:"omitempty,url,max=1000"`
	ObjectKey *string `json:"object_key" validate:"omitempty,max=500"`
}

// ExamCreateRequest represents the request structure for creating exams
type ExamCreateRequest struct {
	Name     string   `json:"name" validate:"required,min=1,max=200"`
	Duration int      `json:"duration" validate:"required,exam_duration"`
	Linear   bool     `json:"linearity"`
	GroupIDs []string `json:"group_ids" validate:"required,min=1,dive,uuid4"`
}

// QuestionSaveRequest writes one question into its numbered slot
type QuestionSaveRequest struct {
	QuestionNo int                 `json:"question_no" validate:"required,min=1"`
	Type       models.QuestionType `json:"type" validate:"required,question_type"`
	Text       string              `json:"question" validate:"required,max=4000"`
	Options    []string            `json:"options" validate:"omitempty,dive,max=1000"`
	Answer     string              `json:"answer" validate:"required,max=2000"`
	Marks      float64             `json:"marks" validate:"required,gt=0"`
}

// QuestionSetSaveRequest saves a full question set for an exam
type QuestionSetSaveRequest struct {
	Questions []QuestionSaveRequest `json:"questions" validate:"required,min=1,dive"`
}

// GenerateQuestionsRequest asks the model for a question set
type GenerateQuestionsRequest struct {
	Topic         string   `json:"topic" validate:"required,max=500"`
	QuestionCount int      `json:"question_count" validate:"required,min=1,max=50"`
	Types         []string `json:"types" validate:"omitempty,dive,question_type"`
	MarksPer      float64  `json:"marks_per_question" validate:"omitempty,gt=0"`

	// UseMaterials pulls uploaded material context into the prompt.
	UseMaterials bool `json:"use_materials"`

	// MaterialKeys narrows the context to those uploaded objects; empty
	// means every material attached to the exam.
	MaterialKeys []string `json:"material_keys" validate:"omitempty,dive,max=512"`
}

// SubmitAnswersRequest carries the ordered answer array for one attempt.
// Index 0 corresponds to question 1; blanks mean unattempted.
type SubmitAnswersRequest struct {
	Answers         []string `json:"answers" validate:"required"`
	DurationSeconds int      `json:"duration_seconds" validate:"omitempty,min=0"`
}

// ChatMessageRequest represents one outbound room message
type ChatMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// UploadURLRequest asks for a presigned upload slot for one file
type UploadURLRequest struct {
	FileName string  `json:"file_name" validate:"required,max=255"`
	ExamID   *string `json:"exam_id" validate:"omitempty,uuid4"`
	ClassID  *string `json:"class_id" validate:"omitempty,uuid4"`
}
