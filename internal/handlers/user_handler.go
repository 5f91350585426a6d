package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userService      services.UserService
	analyticsService services.AnalyticsService
}

func NewUserHandler(userService services.UserService, analyticsService services.AnalyticsService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler:      NewBaseHandler(logger),
		userService:      userService,
		analyticsService: analyticsService,
	}
}

// GetProfile returns the authenticated user's own record
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetHistory returns the caller's recorded exam results, newest first
func (h *UserHandler) GetHistory(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	history, err := h.analyticsService.UserHistory(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// DeleteAccount removes the caller's account and everything keyed to it
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting account", "user_id", userID)

	if err := h.userService.DeleteAccount(c.Request.Context(), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Account deleted",
	})
}

func (h *UserHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleCommonErrors(c, err) {
		return
	}
	h.internalError(c, err)
}
