package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

type GroupHandler struct {
	BaseHandler
	groupService services.GroupService
}

func NewGroupHandler(groupService services.GroupService, logger utils.Logger) *GroupHandler {
	return &GroupHandler{
		BaseHandler:  NewBaseHandler(logger),
		groupService: groupService,
	}
}

// CreateGroup creates a group with the caller as admin
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req services.CreateGroupRequest
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

	group, err := h.groupService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, group)
}

// GetGroup returns one group with members and materials
func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	group, err := h.groupService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// ListGroups returns the groups the caller created or joined
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	groups, err := h.groupService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, groups)
}

// DeleteGroup removes a group; admin only
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting group", "group_id", id)

	if err := h.groupService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Group deleted"})
}

// JoinGroup adds the caller to a group. Rejoining is a no-op.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	joined, err := h.groupService.Join(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if joined {
		c.JSON(http.StatusCreated, SuccessResponse{Message: "Joined group"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Already a member"})
}

type addMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// AddMember enrolls a registered user by email; admin only
func (h *GroupHandler) AddMember(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}

	var req addMemberRequest
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

	added, err := h.groupService.AddMemberByEmail(c.Request.Context(), id, req.Email, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if added {
		c.JSON(http.StatusCreated, SuccessResponse{Message: "Member added"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Already a member"})
}

// LeaveGroup removes the caller from a group
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.groupService.Leave(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Left group"})
}

// RemoveMember kicks a member out; admin only
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := h.requireIDParam(c, "user_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.groupService.RemoveMember(c.Request.Context(), id, targetID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Member removed"})
}

// GetMembers lists a group's members
func (h *GroupHandler) GetMembers(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	members, err := h.groupService.GetMembers(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// AddMaterial attaches a study material to a group; admin only
func (h *GroupHandler) AddMaterial(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}

	var req services.GroupMaterialRequest
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

	material, err := h.groupService.AddMaterial(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, material)
}

// RemoveMaterial detaches a study material; admin only
func (h *GroupHandler) RemoveMaterial(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	materialID, ok := h.requireIDParam(c, "material_id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.groupService.RemoveMaterial(c.Request.Context(), id, materialID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Material removed"})
}

// GetStats returns member and exam counts for a group
func (h *GroupHandler) GetStats(c *gin.Context) {
	id, ok := h.requireIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.groupService.GetStats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *GroupHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleCommonErrors(c, err) {
		return
	}

	switch {
	case errors.Is(err, services.ErrMaterialNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Material not found",
		})
	default:
		h.internalError(c, err)
	}
}
