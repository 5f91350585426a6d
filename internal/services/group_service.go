package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

type groupService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewGroupService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) GroupService {
	return &groupService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// getGroup loads a group or maps the miss to the domain sentinel.
func (s *groupService) getGroup(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.Group().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

func (s *groupService) Create(ctx context.Context, req *CreateGroupRequest, creatorID string) (*GroupResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	creator, err := s.repo.User().GetByID(ctx, nil, creatorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}

	if exists, err := s.repo.Group().ExistsByNameAndCreator(ctx, nil, req.Name, creatorID); err != nil {
		return nil, fmt.Errorf("failed to check group name: %w", err)
	} else if exists {
		return nil, &BusinessRuleError{
			Rule:    "unique_group_name",
			Message: "a group with this name already exists",
			Context: map[string]interface{}{"name": req.Name},
		}
	}

	group := &models.Group{
		ID:        uuid.New().String(),
		Name:      req.Name,
		CreatedBy: creatorID,
	}

	// The creator is admin from the first moment, written in the same
	// transaction as the group itself.
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Group().Create(ctx, nil, group); err != nil {
			return err
		}
		_, err := txRepo.Group().AddMember(ctx, nil, &models.GroupMember{
			GroupID:  group.ID,
			UserID:   creatorID,
			Username: creator.Username,
			JoinedAt: time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	s.logger.InfoContext(ctx, "group created", "group_id", group.ID, "creator_id", creatorID)

	if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventGroupCreated, map[string]string{
		"group_id":   group.ID,
		"creator_id": creatorID,
	})); pubErr != nil {
		s.logger.WarnContext(ctx, "failed to publish group created event", "error", pubErr)
	}

	return &GroupResponse{Group: group, IsAdmin: true, IsMember: true, MemberCount: 1}, nil
}

func (s *groupService) GetByID(ctx context.Context, id, userID string) (*GroupResponse, error) {
	group, err := s.repo.Group().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	isAdmin := group.CreatedBy == userID
	isMember := false
	for _, m := range group.Members {
		if m.UserID == userID {
			isMember = true
			break
		}
	}
	if !isAdmin && !isMember {
		return nil, NewPermissionError(userID, id, "group", "read", "not a member of this group")
	}

	return &GroupResponse{
		Group:       group,
		IsAdmin:     isAdmin,
		IsMember:    isMember,
		MemberCount: len(group.Members),
	}, nil
}

func (s *groupService) ListForUser(ctx context.Context, userID string) (*GroupListResponse, error) {
	groups, err := s.repo.Group().GetVisibleToUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	out := make([]*GroupResponse, 0, len(groups))
	for i := range groups {
		g := groups[i]
		out = append(out, &GroupResponse{
			Group:    &g,
			IsAdmin:  g.CreatedBy == userID,
			IsMember: true,
		})
	}
	return &GroupListResponse{Groups: out, Total: int64(len(out))}, nil
}

func (s *groupService) Delete(ctx context.Context, id, userID string) error {
	group, err := s.getGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.CreatedBy != userID {
		return NewPermissionError(userID, id, "group", "delete", "only the group admin can delete it")
	}

	if err := s.repo.Group().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	s.logger.InfoContext(ctx, "group deleted", "group_id", id, "user_id", userID)
	return nil
}

// Join adds the caller to the group. Rejoining is a no-op; the returned bool
// reports whether a new membership row was written.
func (s *groupService) Join(ctx context.Context, groupID, userID string) (bool, error) {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return false, err
	}

	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to get user: %w", err)
	}

	joined, err := s.repo.Group().AddMember(ctx, nil, &models.GroupMember{
		GroupID:  groupID,
		UserID:   userID,
		Username: user.Username,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to join group: %w", err)
	}

	if joined {
		s.logger.InfoContext(ctx, "member joined group", "group_id", groupID, "user_id", userID)
		if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventGroupMemberJoined, map[string]string{
			"group_id": groupID,
			"user_id":  userID,
		})); pubErr != nil {
			s.logger.WarnContext(ctx, "failed to publish member joined event", "error", pubErr)
		}
	}

	return joined, nil
}

// AddMemberByEmail lets the group admin enroll a registered user directly.
// Re-adding an existing member is a no-op.
func (s *groupService) AddMemberByEmail(ctx context.Context, groupID, email, requesterID string) (bool, error) {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	if group.CreatedBy != requesterID {
		return false, NewPermissionError(requesterID, groupID, "group", "add_member", "only the group admin can add members")
	}

	user, err := s.repo.User().GetByEmail(ctx, nil, email)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to get user by email: %w", err)
	}

	added, err := s.repo.Group().AddMember(ctx, nil, &models.GroupMember{
		GroupID:  groupID,
		UserID:   user.ID,
		Username: user.Username,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to add member: %w", err)
	}

	if added {
		s.logger.InfoContext(ctx, "member added to group", "group_id", groupID, "user_id", user.ID, "added_by", requesterID)
		if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventGroupMemberJoined, map[string]string{
			"group_id": groupID,
			"user_id":  user.ID,
		})); pubErr != nil {
			s.logger.WarnContext(ctx, "failed to publish member joined event", "error", pubErr)
		}
	}

	return added, nil
}

func (s *groupService) Leave(ctx context.Context, groupID, userID string) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy == userID {
		return &BusinessRuleError{
			Rule:    "admin_cannot_leave",
			Message: "the group admin cannot leave; delete the group instead",
		}
	}

	removed, err := s.repo.Group().RemoveMember(ctx, nil, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to leave group: %w", err)
	}
	if !removed {
		return NewPermissionError(userID, groupID, "group", "leave", "not a member of this group")
	}
	return nil
}

func (s *groupService) RemoveMember(ctx context.Context, groupID, targetUserID, requesterID string) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy != requesterID {
		return NewPermissionError(requesterID, groupID, "group", "remove_member", "only the group admin can remove members")
	}
	if targetUserID == requesterID {
		return &BusinessRuleError{
			Rule:    "admin_cannot_leave",
			Message: "the group admin cannot remove themselves",
		}
	}

	removed, err := s.repo.Group().RemoveMember(ctx, nil, groupID, targetUserID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if !removed {
		return ErrUserNotFound
	}

	s.logger.InfoContext(ctx, "member removed from group", "group_id", groupID, "user_id", targetUserID, "removed_by", requesterID)
	return nil
}

func (s *groupService) GetMembers(ctx context.Context, groupID, userID string) ([]models.GroupMember, error) {
	if err := s.requireMembership(ctx, groupID, userID); err != nil {
		return nil, err
	}

	members, err := s.repo.Group().GetMembers(ctx, nil, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}

func (s *groupService) AddMaterial(ctx context.Context, groupID string, req *GroupMaterialRequest, userID string) (*models.GroupMaterial, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if verrs := s.validator.GetBusinessValidator().ValidateMaterial(req); len(verrs) > 0 {
		return nil, verrs
	}

	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.CreatedBy != userID {
		return nil, NewPermissionError(userID, groupID, "group", "add_material", "only the group admin can attach materials")
	}

	material := &models.GroupMaterial{
		ID:         uuid.New().String(),
		GroupID:    groupID,
		Title:      req.Title,
		Link:       req.Link,
		ObjectKey:  req.ObjectKey,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.repo.Group().AddMaterial(ctx, nil, material); err != nil {
		return nil, fmt.Errorf("failed to add material: %w", err)
	}
	return material, nil
}

func (s *groupService) RemoveMaterial(ctx context.Context, groupID, materialID, userID string) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy != userID {
		return NewPermissionError(userID, groupID, "group", "remove_material", "only the group admin can remove materials")
	}

	removed, err := s.repo.Group().RemoveMaterial(ctx, nil, groupID, materialID)
	if err != nil {
		return fmt.Errorf("failed to remove material: %w", err)
	}
	if !removed {
		return ErrMaterialNotFound
	}
	return nil
}

func (s *groupService) GetStats(ctx context.Context, groupID, userID string) (*repositories.GroupStats, error) {
	if err := s.requireMembership(ctx, groupID, userID); err != nil {
		return nil, err
	}

	stats, err := s.repo.Group().GetStats(ctx, nil, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group stats: %w", err)
	}
	return stats, nil
}

// requireMembership admits the group admin and members, rejects everyone else.
func (s *groupService) requireMembership(ctx context.Context, groupID, userID string) error {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy == userID {
		return nil
	}
	isMember, err := s.repo.Group().IsMember(ctx, nil, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return NewPermissionError(userID, groupID, "group", "read", "not a member of this group")
	}
	return nil
}
