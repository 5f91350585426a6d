package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/auth"
	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

type userService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	tokens         *auth.TokenManager
	eventPublisher events.EventPublisher
}

func NewUserService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, tokens *auth.TokenManager, eventPublisher events.EventPublisher) UserService {
	return &userService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		tokens:         tokens,
		eventPublisher: eventPublisher,
	}
}

func (s *userService) SignUp(ctx context.Context, req *SignUpRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if taken, err := s.repo.User().ExistsByUsername(ctx, nil, req.Username); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	} else if taken {
		return nil, ErrUsernameTaken
	}

	if taken, err := s.repo.User().ExistsByEmail(ctx, nil, req.Email); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	} else if taken {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}

	if err := s.repo.User().Create(ctx, nil, user); err != nil {
		// The uniqueness checks race with concurrent signups; the unique
		// index is the real arbiter.
		if repositories.IsDuplicateError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID, "username", user.Username)

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *userService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByUsername(ctx, nil, req.Username)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// Same response as a bad password so usernames cannot be probed.
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// DeleteAccount removes the user and everything keyed to them. The whole
// cascade runs in one transaction so a failure leaves the account intact.
func (s *userService) DeleteAccount(ctx context.Context, userID string) error {
	s.logger.InfoContext(ctx, "deleting account", "user_id", userID)

	if _, err := s.repo.User().GetByID(ctx, nil, userID); err != nil {
		if repositories.IsNotFoundError(err) {
			// Already gone; a repeated delete stays a success.
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Analytics().DeleteByUser(ctx, nil, userID); err != nil {
			return err
		}
		if err := txRepo.Answer().DeleteByUser(ctx, nil, userID); err != nil {
			return err
		}
		if err := txRepo.Chat().DeleteBySender(ctx, nil, userID); err != nil {
			return err
		}
		if err := txRepo.Group().RemoveMemberEverywhere(ctx, nil, userID); err != nil {
			return err
		}
		// Groups and exams the user created go with the account, along with
		// their members, materials, questions and sheets.
		if err := txRepo.Exam().DeleteByCreator(ctx, nil, userID); err != nil {
			return err
		}
		if err := txRepo.Group().DeleteByCreator(ctx, nil, userID); err != nil {
			return err
		}
		return txRepo.User().Delete(ctx, nil, userID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if pubErr := s.eventPublisher.Publish(ctx, events.NewEvent(events.EventUserDeleted, map[string]string{
		"user_id": userID,
	})); pubErr != nil {
		s.logger.WarnContext(ctx, "failed to publish user deleted event", "error", pubErr)
	}

	return nil
}
