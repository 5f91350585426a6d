package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries what every handler needs
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs with the request-scoped logger so the request id rides along
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.LoggerFromContext(c.Request.Context()).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err)
	utils.LoggerFromContext(c.Request.Context()).Error(msg, args...)
}

// currentUserID reads the authenticated user set by the auth middleware
func (h *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return id, true
}

// requireIDParam reads a path parameter, rejecting blank values
func (h *BaseHandler) requireIDParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing " + name + " parameter",
		})
		return "", false
	}
	return id, true
}

// handleCommonErrors maps the error types every endpoint can produce. It
// reports whether the error was handled so per-handler mappings can run their
// own sentinels first and fall back here.
func (h *BaseHandler) handleCommonErrors(c *gin.Context, err error) bool {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return true
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return true
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return true
	}

	var externalError *services.ExternalServiceError
	if errors.As(err, &externalError) {
		h.LogError(c, err, "Upstream service failure", "service", externalError.Service, "operation", externalError.Operation)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Upstream service failure",
			Details: map[string]interface{}{
				"service":     externalError.Service,
				"operation":   externalError.Operation,
				"raw_payload": externalError.RawPayload,
			},
		})
		return true
	}

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "User not found"})
	case errors.Is(err, services.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Group not found"})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Exam not found"})
	default:
		return false
	}
	return true
}

// internalError is the fall-through for errors no mapping claimed
func (h *BaseHandler) internalError(c *gin.Context, err error) {
	h.LogError(c, err, "Unexpected service error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
	})
}
