package repositories

import (
	"time"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	CreatedBy *string    `json:"created_by"`
	GroupID   *string    `json:"group_id"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "name"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type GroupFilters struct {
	CreatedBy *string `json:"created_by"`
	MemberID  *string `json:"member_id"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
}

type ChatHistoryFilters struct {
	RoomID string     `json:"room_id"`
	Since  *time.Time `json:"since"`
	Limit  int        `json:"limit"`
}

type AnalyticFilters struct {
	ExamID *string `json:"exam_id"`
	UserID *string `json:"user_id"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type ExamStats struct {
	QuestionCount int     `json:"question_count"`
	TotalMarks    float64 `json:"total_marks"`
	StartedCount  int     `json:"started_count"`
	FinishedCount int     `json:"finished_count"`
	AverageMarks  float64 `json:"average_marks"`
}

type GroupStats struct {
	MemberCount   int `json:"member_count"`
	MaterialCount int `json:"material_count"`
	ExamCount     int `json:"exam_count"`
}
