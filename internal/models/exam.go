package models

import (
	"time"
)

type Exam struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	Name      string `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	CreatedBy string `json:"created_by" gorm:"not null;index;size:36"`

	// Duration is in minutes. Linear exams forbid revisiting earlier questions.
	Duration int  `json:"duration" gorm:"not null" validate:"required,min=1,max=600"`
	Linear   bool `json:"linearity" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Creator   User         `json:"-" gorm:"foreignKey:CreatedBy"`
	Groups    []ExamGroup  `json:"groups" gorm:"foreignKey:ExamID"`
	Questions []Question   `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	Timers    []ExamTimer  `json:"-" gorm:"foreignKey:ExamID"`
	Finishes  []ExamFinish `json:"-" gorm:"foreignKey:ExamID"`
}

// ExamGroup links an exam to the groups whose members may take it.
type ExamGroup struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	ExamID  string `json:"exam_id" gorm:"not null;size:36;uniqueIndex:idx_exam_group"`
	GroupID string `json:"group_id" gorm:"not null;size:36;uniqueIndex:idx_exam_group;index"`

	Exam  Exam  `json:"-" gorm:"foreignKey:ExamID"`
	Group Group `json:"-" gorm:"foreignKey:GroupID"`
}

// ExamTimer records when a user's countdown was armed. One row per (exam, user):
// the unique index plus an insert-if-absent write means the first start wins and
// every later start reads the same deadline back.
type ExamTimer struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	ExamID string `json:"exam_id" gorm:"not null;size:36;uniqueIndex:idx_exam_timer"`
	UserID string `json:"user_id" gorm:"not null;size:36;uniqueIndex:idx_exam_timer;index"`

	Deadline time.Time `json:"deadline" gorm:"not null"`
	StartedAt time.Time `json:"started_at"`

	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
	User User `json:"-" gorm:"foreignKey:UserID"`
}

// ExamFinish is the set of users who completed the exam. Duplicate finishes are
// swallowed by the unique index rather than accumulating in an append list.
type ExamFinish struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	ExamID string `json:"exam_id" gorm:"not null;size:36;uniqueIndex:idx_exam_finish"`
	UserID string `json:"user_id" gorm:"not null;size:36;uniqueIndex:idx_exam_finish;index"`

	FinishedAt time.Time `json:"finished_at"`

	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (Exam) TableName() string       { return "exams" }
func (ExamGroup) TableName() string  { return "exam_groups" }
func (ExamTimer) TableName() string  { return "exam_timers" }
func (ExamFinish) TableName() string { return "exam_finishes" }
