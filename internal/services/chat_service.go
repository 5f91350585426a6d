package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/chat"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

const defaultHistoryLimit = 100

// chatService runs one room per group. Room membership is group membership.
type chatService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	broker    *chat.RoomBroker
}

func NewChatService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, broker *chat.RoomBroker) ChatService {
	return &chatService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		broker:    broker,
	}
}

// requireRoomAccess maps the room to its group and admits admin and members.
func (s *chatService) requireRoomAccess(ctx context.Context, roomID, userID string) error {
	group, err := s.repo.Group().GetByID(ctx, nil, roomID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to get room: %w", err)
	}
	if group.CreatedBy == userID {
		return nil
	}
	isMember, err := s.repo.Group().IsMember(ctx, nil, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return NewPermissionError(userID, roomID, "room", "chat", "not a member of this room")
	}
	return nil
}

// Send persists the message first, then fans it out to live subscribers. A
// delivery failure never loses the message; history has it.
func (s *chatService) Send(ctx context.Context, roomID, userID string, req *ChatMessageRequest) (*models.ChatMessage, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireRoomAccess(ctx, roomID, userID); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	msg := &models.ChatMessage{
		ID:         uuid.New().String(),
		RoomID:     roomID,
		SenderID:   userID,
		SenderName: user.Username,
		Body:       req.Message,
		SentAt:     time.Now().UTC(),
	}

	if err := s.repo.Chat().Create(ctx, nil, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if err := s.broker.Broadcast(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to broadcast message", "room_id", roomID, "error", err)
	}

	return msg, nil
}

func (s *chatService) History(ctx context.Context, roomID, userID string, filters repositories.ChatHistoryFilters) ([]models.ChatMessage, error) {
	if err := s.requireRoomAccess(ctx, roomID, userID); err != nil {
		return nil, err
	}

	filters.RoomID = roomID
	if filters.Limit <= 0 {
		filters.Limit = defaultHistoryLimit
	}

	messages, _, err := s.repo.Chat().GetByRoom(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return messages, nil
}

func (s *chatService) Join(ctx context.Context, roomID, userID string) (<-chan models.ChatMessage, error) {
	if err := s.requireRoomAccess(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.broker.Join(ctx, roomID)
}
