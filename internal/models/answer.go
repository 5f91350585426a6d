package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnswerSheet is the single submission for one (exam, user) pair. Answers is an
// ordered JSON array of strings, positionally aligned to question numbers
// (index 0 = question 1) and sized to the exam's question count at submission
// time. The unique index makes the sheet write-once: a second submission is a
// no-op rather than a second document.
type AnswerSheet struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	ExamID string `json:"exam_id" gorm:"not null;size:36;uniqueIndex:idx_exam_answer_sheet"`
	UserID string `json:"user_id" gorm:"not null;size:36;uniqueIndex:idx_exam_answer_sheet;index"`

	Username string         `json:"username" gorm:"not null;size:100"`
	Answers  datatypes.JSON `json:"answers" gorm:"type:jsonb;not null"`

	SubmittedAt time.Time `json:"submitted_at"`

	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (AnswerSheet) TableName() string { return "answer_sheets" }
