package services

import (
	"context"
	"time"

	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type SignUpRequest = validator.SignUpRequest
type LoginRequest = validator.LoginRequest
type CreateGroupRequest = validator.GroupCreateRequest
type GroupMaterialRequest = validator.GroupMaterialRequest
type CreateExamRequest = validator.ExamCreateRequest
type QuestionSaveRequest = validator.QuestionSaveRequest
type QuestionSetSaveRequest = validator.QuestionSetSaveRequest
type GenerateQuestionsRequest = validator.GenerateQuestionsRequest
type SubmitAnswersRequest = validator.SubmitAnswersRequest
type ChatMessageRequest = validator.ChatMessageRequest
type UploadURLRequest = validator.UploadURLRequest

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type GroupResponse struct {
	*models.Group
	IsAdmin     bool `json:"is_admin"`
	IsMember    bool `json:"is_member"`
	MemberCount int  `json:"member_count"`
}

type GroupListResponse struct {
	Groups []*GroupResponse `json:"groups"`
	Total  int64            `json:"total"`
}

type ExamResponse struct {
	*models.Exam
	QuestionCount int  `json:"question_count"`
	IsCreator     bool `json:"is_creator"`
	HasStarted    bool `json:"has_started"`
	HasFinished   bool `json:"has_finished"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
}

// AnswerSheetView is one participant's stored submission as the exam
// creator sees it.
type AnswerSheetView struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Answers     []string  `json:"answers"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// QuestionView is a question as shown to a participant. The answer is
// stripped unless the viewer created the exam.
type QuestionView struct {
	QuestionNo int                 `json:"question_no"`
	Type       models.QuestionType `json:"type"`
	Text       string              `json:"question"`
	Options    []string            `json:"options,omitempty"`
	Marks      float64             `json:"marks"`
	Answer     string              `json:"answer,omitempty"`
}

// StartExamResponse reports the armed deadline. AlreadyStarted is true when a
// previous start armed the timer; the deadline is the same either way.
type StartExamResponse struct {
	ExamID         string    `json:"exam_id"`
	Deadline       time.Time `json:"deadline"`
	StartedAt      time.Time `json:"started_at"`
	AlreadyStarted bool      `json:"already_started"`
	Questions      []QuestionView `json:"questions"`
}

// GradeSummary is the server-computed result of one attempt
type GradeSummary struct {
	TotalQuestions int     `json:"total_questions"`
	Correct        int     `json:"correct"`
	Wrong          int     `json:"wrong"`
	Unattempted    int     `json:"unattempted"`
	MarksObtained  float64 `json:"marks_obtained"`
	TotalMarks     float64 `json:"total_marks"`
	Accuracy       float64 `json:"accuracy"`
}

// SubmitAnswersResponse reports the graded result. Accepted is false when an
// earlier submission already holds the slot; the stored result is returned.
type SubmitAnswersResponse struct {
	Accepted bool          `json:"accepted"`
	Result   *GradeSummary `json:"result"`
}

type SessionStatusResponse struct {
	ExamID           string     `json:"exam_id"`
	Started          bool       `json:"started"`
	Finished         bool       `json:"finished"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"`
}

type LeaderboardEntry struct {
	Rank            int       `json:"rank"`
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	MarksObtained   float64   `json:"marks_obtained"`
	TotalMarks      float64   `json:"total_marks"`
	Accuracy        float64   `json:"accuracy"`
	DurationSeconds int       `json:"duration_seconds"`
	RecordedAt      time.Time `json:"recorded_at"`
}

type LeaderboardResponse struct {
	ExamID  string             `json:"exam_id"`
	Entries []LeaderboardEntry `json:"entries"`
}

type GeneratedQuestionsResponse struct {
	ExamID    string         `json:"exam_id"`
	Questions []QuestionView `json:"questions"`
}

type UploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

type DownloadURLResponse struct {
	DownloadURL string `json:"download_url"`
	ObjectKey   string `json:"object_key"`
	ExpiresIn   int    `json:"expires_in_seconds"`
}

// ExamMaterialsResponse gathers study materials visible through an exam: the
// materials of every assigned group plus files uploaded against the exam.
type ExamMaterialsResponse struct {
	GroupMaterials []models.GroupMaterial `json:"group_materials"`
	Uploaded       []models.ExamMaterial  `json:"uploaded"`
}

// ===== SERVICE INTERFACES =====

type UserService interface {
	SignUp(ctx context.Context, req *SignUpRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)

	// DeleteAccount removes the user and everything keyed to them in one
	// transaction: analytics, answer sheets, messages, memberships, and the
	// groups and exams they created.
	DeleteAccount(ctx context.Context, userID string) error
}

type GroupService interface {
	Create(ctx context.Context, req *CreateGroupRequest, creatorID string) (*GroupResponse, error)
	GetByID(ctx context.Context, id, userID string) (*GroupResponse, error)
	ListForUser(ctx context.Context, userID string) (*GroupListResponse, error)
	Delete(ctx context.Context, id, userID string) error

	// Membership
	Join(ctx context.Context, groupID, userID string) (bool, error)
	AddMemberByEmail(ctx context.Context, groupID, email, requesterID string) (bool, error)
	Leave(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, targetUserID, requesterID string) error
	GetMembers(ctx context.Context, groupID, userID string) ([]models.GroupMember, error)

	// Materials
	AddMaterial(ctx context.Context, groupID string, req *GroupMaterialRequest, userID string) (*models.GroupMaterial, error)
	RemoveMaterial(ctx context.Context, groupID, materialID, userID string) error

	GetStats(ctx context.Context, groupID, userID string) (*repositories.GroupStats, error)
}

type ExamService interface {
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id, userID string) (*ExamResponse, error)
	ListForUser(ctx context.Context, userID string) (*ExamListResponse, error)
	Delete(ctx context.Context, id, userID string) error

	AssignToGroup(ctx context.Context, examID, groupID, userID string) error

	// Question set management
	SaveQuestions(ctx context.Context, examID string, req *QuestionSetSaveRequest, userID string) error
	GetQuestions(ctx context.Context, examID, userID string) ([]QuestionView, error)

	// GetMaterials flattens study materials across the exam's assigned groups
	// plus files uploaded against the exam itself.
	GetMaterials(ctx context.Context, examID, userID string) (*ExamMaterialsResponse, error)

	GetStats(ctx context.Context, examID, userID string) (*repositories.ExamStats, error)

	// GetAnswerSheets returns submitted sheets, creator only. A non-empty
	// userID narrows the result to that participant's sheet.
	GetAnswerSheets(ctx context.Context, examID, callerID, userID string) ([]AnswerSheetView, error)

	// Permission checks
	CanAccess(ctx context.Context, examID, userID string) (bool, error)
}

type SessionService interface {
	// Start arms the per-user countdown; repeated starts return the same
	// deadline.
	Start(ctx context.Context, examID, userID string) (*StartExamResponse, error)

	// SubmitAnswers grades and stores the sheet. The first submission wins;
	// later ones return the stored result with Accepted=false.
	SubmitAnswers(ctx context.Context, examID, userID string, req *SubmitAnswersRequest) (*SubmitAnswersResponse, error)

	// Finish marks completion without a sheet, used when a participant
	// abandons the attempt.
	Finish(ctx context.Context, examID, userID string) error

	// HandleTimeout finalizes an expired attempt: a started exam that was
	// never submitted gets an empty sheet graded and recorded, then the
	// finish mark. Safe to call repeatedly.
	HandleTimeout(ctx context.Context, examID, userID string) (*SubmitAnswersResponse, error)

	Status(ctx context.Context, examID, userID string) (*SessionStatusResponse, error)
}

type AnalyticsService interface {
	Leaderboard(ctx context.Context, examID, userID string) (*LeaderboardResponse, error)
	UserHistory(ctx context.Context, userID string) ([]models.Analytic, error)
	ExamResult(ctx context.Context, examID, userID string) (*models.Analytic, error)

	// ExportLeaderboard renders the ranking as an xlsx workbook.
	ExportLeaderboard(ctx context.Context, examID, userID string) ([]byte, error)
}

type GenerationService interface {
	// Generate produces a question set with the model and saves it into the
	// exam's slots, overwriting previous content.
	Generate(ctx context.Context, examID string, req *GenerateQuestionsRequest, userID string) (*GeneratedQuestionsResponse, error)

	// IngestMaterial extracts and indexes one uploaded material. Failures are
	// logged and swallowed; a material that cannot be read is skipped.
	IngestMaterial(ctx context.Context, material *models.ExamMaterial)
}

type ChatService interface {
	Send(ctx context.Context, roomID, userID string, req *ChatMessageRequest) (*models.ChatMessage, error)
	History(ctx context.Context, roomID, userID string, filters repositories.ChatHistoryFilters) ([]models.ChatMessage, error)

	// Join subscribes to the room's live feed until ctx is cancelled.
	Join(ctx context.Context, roomID, userID string) (<-chan models.ChatMessage, error)
}

type UploadService interface {
	CreateUploadURL(ctx context.Context, req *UploadURLRequest, userID string) (*UploadURLResponse, error)

	// CompleteUpload records the material and kicks off ingestion in the
	// background.
	CompleteUpload(ctx context.Context, objectKey string, userID string) error

	// GetDownloadURL presigns a read for anyone with access to the material's
	// exam or group.
	GetDownloadURL(ctx context.Context, objectKey string, userID string) (*DownloadURLResponse, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	User() UserService
	Group() GroupService
	Exam() ExamService
	Session() SessionService
	Analytics() AnalyticsService
	Generation() GenerationService
	Chat() ChatService
	Upload() UploadService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
