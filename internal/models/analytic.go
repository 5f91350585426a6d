package models

import (
	"time"
)

// Analytic summarizes one user's completed pass through one exam. One row per
// (exam, user), enforced by the unique index; RecordAttempt inserts with an
// on-conflict-do-nothing clause so concurrent submissions cannot produce
// duplicate leaderboard rows.
type Analytic struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	ExamID string `json:"exam_id" gorm:"not null;size:36;uniqueIndex:idx_exam_analytic"`
	UserID string `json:"user_id" gorm:"not null;size:36;uniqueIndex:idx_exam_analytic;index"`

	// Username is denormalized for leaderboard display only; UserID is the
	// reference used everywhere else.
	Username string `json:"username" gorm:"not null;size:100"`

	TotalQuestions int     `json:"total_questions" gorm:"not null"`
	Correct        int     `json:"correct" gorm:"not null"`
	Wrong          int     `json:"wrong" gorm:"not null"`
	Unattempted    int     `json:"unattempted" gorm:"not null"`
	MarksObtained  float64 `json:"marks_obtained" gorm:"not null;index"`
	TotalMarks     float64 `json:"total_marks" gorm:"not null"`
	Accuracy       float64 `json:"accuracy" gorm:"not null"`

	// DurationSeconds is how long the attempt took, reported by the session.
	DurationSeconds int `json:"duration_seconds"`

	RecordedAt time.Time `json:"recorded_at" gorm:"not null;index"`

	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (Analytic) TableName() string { return "analytics" }
