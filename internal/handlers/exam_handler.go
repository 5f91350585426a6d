package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

type ExamHandler struct {
	BaseHandler
	examService       services.ExamService
	generationService services.GenerationService
}

func NewExamHandler(examService services.ExamService, generationService services.GenerationService, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler:       NewBaseHandler(logger),
		examService:       examService,
		generationService: generationService,
	}
}

// CreateExam creates an exam, optionally assigned to groups in one shot
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req services.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// GetExam returns one exam with the caller's progress flags
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// ListExams returns exams the caller created or can take
func (h *ExamHandler) ListExams(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	exams, err := h.examService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

// DeleteExam removes an exam and everything under it; creator only
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting exam", "exam_id", id)

	if err := h.examService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deleted"})
}

// AssignToGroup makes an exam visible to a group's members
func (h *ExamHandler) AssignToGroup(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	groupID, ok := h.requireIDParam(c, "group_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.examService.AssignToGroup(c.Request.Context(), id, groupID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam assigned to group"})
}

// SaveQuestions writes a question set into numbered slots; creator only
func (h *ExamHandler) SaveQuestions(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}

	var req services.QuestionSetSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.examService.SaveQuestions(c.Request.Context(), id, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Questions saved"})
}

// GetQuestions returns the question set; answers only for the creator
func (h *ExamHandler) GetQuestions(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	questions, err := h.examService.GetQuestions(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// GenerateQuestions asks the model for a question set; creator only
func (h *ExamHandler) GenerateQuestions(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}

	var req services.GenerateQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Generating questions", "exam_id", id, "topic", req.Topic, "count", req.QuestionCount)

	generated, err := h.generationService.Generate(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, generated)
}

// GetMaterials lists the study materials visible through an exam
func (h *ExamHandler) GetMaterials(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	materials, err := h.examService.GetMaterials(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, materials)
}

// GetStats returns aggregate exam statistics; creator only
func (h *ExamHandler) GetStats(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.examService.GetStats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetAnswerSheets lists submitted sheets for the creator, optionally
// narrowed to one participant via ?user_id=.
func (h *ExamHandler) GetAnswerSheets(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	callerID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	sheets, err := h.examService.GetAnswerSheets(c.Request.Context(), id, callerID, c.Query("user_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"answers": sheets})
}

func (h *ExamHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleCommonErrors(c, err) {
		return
	}

	switch {
	case errors.Is(err, services.ErrGenerationNotConfigured):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Question generation is not configured",
		})
	default:
		h.internalError(c, err)
	}
}
