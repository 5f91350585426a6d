package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AnalyticsHandler struct {
	BaseHandler
	analyticsService services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService services.AnalyticsService, logger utils.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		BaseHandler:      NewBaseHandler(logger),
		analyticsService: analyticsService,
	}
}

// GetLeaderboard returns the exam's ranking
func (h *AnalyticsHandler) GetLeaderboard(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	leaderboard, err := h.analyticsService.Leaderboard(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, leaderboard)
}

// GetResult returns the caller's own recorded result for an exam
func (h *AnalyticsHandler) GetResult(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	result, err := h.analyticsService.ExamResult(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportLeaderboard streams the ranking as an xlsx download; creator only
func (h *AnalyticsHandler) ExportLeaderboard(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting leaderboard", "exam_id", id)

	workbook, err := h.analyticsService.ExportLeaderboard(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=leaderboard-%s.xlsx", id))
	c.Data(http.StatusOK, xlsxContentType, workbook)
}

func (h *AnalyticsHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleCommonErrors(c, err) {
		return
	}

	switch {
	case errors.Is(err, services.ErrResultNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No recorded result for this exam",
		})
	default:
		h.internalError(c, err)
	}
}
