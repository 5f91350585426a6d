package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

// ChatHandler serves room history, message sending, and the live SSE stream
type ChatHandler struct {
	BaseHandler
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService, logger utils.Logger) *ChatHandler {
	return &ChatHandler{
		BaseHandler: NewBaseHandler(logger),
		chatService: chatService,
	}
}

// SendMessage persists one message and fans it out to connected clients
func (h *ChatHandler) SendMessage(c *gin.Context) {
	roomID, ok := h.requireIDParam(c, "room_id")
	if !ok {
		return
	}

	var req services.ChatMessageRequest
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

	msg, err := h.chatService.Send(c.Request.Context(), roomID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetHistory returns room messages in send order. Supports ?since (RFC3339)
// and ?limit.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	roomID, ok := h.requireIDParam(c, "room_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var filters repositories.ChatHistoryFilters
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid since parameter, expected RFC3339 timestamp",
			})
			return
		}
		filters.Since = &t
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid limit parameter",
			})
			return
		}
		filters.Limit = n
	}

	messages, err := h.chatService.History(c.Request.Context(), roomID, userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// StreamMessages holds the connection open and pushes room messages as
// server-sent events until the client disconnects
func (h *ChatHandler) StreamMessages(c *gin.Context) {
	roomID, ok := h.requireIDParam(c, "room_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	feed, err := h.chatService.Join(c.Request.Context(), roomID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Client joined room stream", "room_id", roomID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		msg, open := <-feed
		if !open {
			return false
		}
		c.SSEvent("message", msg)
		return true
	})
}

func (h *ChatHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleCommonErrors(c, err) {
		return
	}

	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Room not found",
		})
	default:
		h.internalError(c, err)
	}
}
