package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

type UploadHandler struct {
	BaseHandler
	uploadService services.UploadService
}

func NewUploadHandler(uploadService services.UploadService, logger utils.Logger) *UploadHandler {
	return &UploadHandler{
		BaseHandler:   NewBaseHandler(logger),
		uploadService: uploadService,
	}
}

// CreateUploadURL presigns an upload slot for one material file
func (h *UploadHandler) CreateUploadURL(c *gin.Context) {
	var req services.UploadURLRequest
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

	resp, err := h.uploadService.CreateUploadURL(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

type completeUploadRequest struct {
	ObjectKey string `json:"object_key" binding:"required"`
}

// CompleteUpload acknowledges a finished upload and starts ingestion
func (h *UploadHandler) CompleteUpload(c *gin.Context) {
	var req completeUploadRequest
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

	if err := h.uploadService.CompleteUpload(c.Request.Context(), req.ObjectKey, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SuccessResponse{
		Message: "Upload recorded, ingestion started",
	})
}

// GetDownloadURL presigns a read for a stored material
func (h *UploadHandler) GetDownloadURL(c *gin.Context) {
	objectKey := c.Query("object_key")
	if objectKey == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "object_key query parameter is required",
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	resp, err := h.uploadService.GetDownloadURL(c.Request.Context(), objectKey, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *UploadHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleCommonErrors(c, err) {
		return
	}

	switch {
	case errors.Is(err, services.ErrUploadsNotConfigured):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Object storage is not configured",
		})
	case errors.Is(err, services.ErrMaterialNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No pending upload for this object key",
		})
	default:
		h.internalError(c, err)
	}
}
