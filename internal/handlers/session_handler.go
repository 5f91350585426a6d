package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

// SessionHandler serves the exam-taking flow: start, submit, finish, status
type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
	}
}

// StartExam arms the countdown and returns the questions without answers.
// Calling it again returns the same deadline.
func (h *SessionHandler) StartExam(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting exam", "exam_id", id)

	resp, err := h.sessionService.Start(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if resp.AlreadyStarted {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SubmitAnswers grades the ordered answer array server-side. The first
// submission wins; repeats get the stored result back.
func (h *SessionHandler) SubmitAnswers(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}

	var req services.SubmitAnswersRequest
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

	h.LogRequest(c, "Submitting answers", "exam_id", id, "answers", len(req.Answers))

	resp, err := h.sessionService.SubmitAnswers(c.Request.Context(), id, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if resp.Accepted {
		c.JSON(http.StatusCreated, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FinishExam marks an attempt complete without a submission
func (h *SessionHandler) FinishExam(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.sessionService.Finish(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam finished"})
}

// HandleTimeout finalizes an expired attempt: an empty sheet is graded and
// recorded for a started exam that was never submitted
func (h *SessionHandler) HandleTimeout(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Finalizing expired attempt", "exam_id", id)

	resp, err := h.sessionService.HandleTimeout(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStatus reports the caller's progress and remaining time
func (h *SessionHandler) GetStatus(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	status, err := h.sessionService.Status(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleCommonErrors(c, err) {
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotStarted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam has not been started",
		})
	case errors.Is(err, services.ErrExamFinished):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam already finished",
		})
	case errors.Is(err, services.ErrDeadlinePassed):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Exam deadline has passed",
		})
	case errors.Is(err, services.ErrExamHasNoQuestions):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam has no questions yet",
		})
	default:
		h.internalError(c, err)
	}
}
