package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

// AuthHandler serves the unauthenticated signup and login endpoints
type AuthHandler struct {
	BaseHandler
	userService services.UserService
}

func NewAuthHandler(userService services.UserService, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		userService: userService,
	}
}

// SignUp creates an account and returns a session token
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req services.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.userService.SignUp(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates credentials and returns a session token
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleCommonErrors(c, err) {
		return
	}

	switch {
	case errors.Is(err, services.ErrUsernameTaken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Username already taken",
		})
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Email already registered",
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Invalid username or password",
		})
	default:
		h.internalError(c, err)
	}
}
