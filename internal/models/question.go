package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionMCQ       QuestionType = "MCQ"
	QuestionTrueFalse QuestionType = "TrueFalse"
	QuestionFillBlank QuestionType = "FillBlank"
)

// MCQOptionCount is the fixed option count for multiple-choice questions.
const MCQOptionCount = 4

type Question struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	ExamID string `json:"exam_id" gorm:"not null;size:36;uniqueIndex:idx_exam_question_no"`

	// QuestionNo is 1-based. Re-saving the same (exam, number) overwrites the
	// previous version of the question.
	QuestionNo int          `json:"question_no" gorm:"not null;uniqueIndex:idx_exam_question_no" validate:"required,min=1"`
	Type       QuestionType `json:"type" gorm:"not null;size:20" validate:"required,question_type"`
	Text       string       `json:"question" gorm:"type:text;not null" validate:"required"`

	// Options holds exactly four strings for MCQ and is empty otherwise.
	Options datatypes.JSON `json:"options" gorm:"type:jsonb"`

	// Answer is the literal answer text, never an option index.
	Answer string  `json:"answer" gorm:"type:text;not null" validate:"required"`
	Marks  float64 `json:"marks" gorm:"not null" validate:"required,gt=0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
}

func (Question) TableName() string { return "questions" }
