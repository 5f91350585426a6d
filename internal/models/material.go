package models

import (
	"time"
)

// ExamMaterial is the standalone ledger of uploaded files consumed by the
// question-generation pipeline: one row per object key, tagged with the exam
// or class it was uploaded for.
type ExamMaterial struct {
	ID        string  `json:"id" gorm:"primaryKey;size:36"`
	ExamID    *string `json:"exam_id" gorm:"size:36;index"`
	ClassID   *string `json:"class_id" gorm:"size:36;index"`
	ObjectKey string  `json:"object_key" gorm:"not null;size:500"`

	CreatedAt time.Time `json:"created_at"`
}

func (ExamMaterial) TableName() string { return "exam_materials" }
