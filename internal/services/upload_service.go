package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/clients"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"

	"github.com/quizbuzz/exam-service/internal/models"
)

// ingestTimeout bounds one background extraction and indexing pass.
const ingestTimeout = 2 * time.Minute

type uploadService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	storage    *clients.StorageClient
	generation GenerationService
}

func NewUploadService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, storage *clients.StorageClient, generation GenerationService) UploadService {
	return &uploadService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  validator,
		storage:    storage,
		generation: generation,
	}
}

// CreateUploadURL presigns an upload slot scoped to the exam or class the
// caller owns. The file never passes through this service.
func (s *uploadService) CreateUploadURL(ctx context.Context, req *UploadURLRequest, userID string) (*UploadURLResponse, error) {
	if s.storage == nil {
		return nil, ErrUploadsNotConfigured
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.ExamID != nil {
		exam, err := s.repo.Exam().GetByID(ctx, nil, *req.ExamID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrExamNotFound
			}
			return nil, fmt.Errorf("failed to get exam: %w", err)
		}
		if exam.CreatedBy != userID {
			return nil, NewPermissionError(userID, *req.ExamID, "exam", "upload", "only the exam creator can upload materials")
		}
	} else if req.ClassID != nil {
		group, err := s.repo.Group().GetByID(ctx, nil, *req.ClassID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrGroupNotFound
			}
			return nil, fmt.Errorf("failed to get group: %w", err)
		}
		if group.CreatedBy != userID {
			return nil, NewPermissionError(userID, *req.ClassID, "group", "upload", "only the group admin can upload materials")
		}
	}

	objectKey := clients.BuildObjectKey(req.ExamID, req.ClassID, req.FileName)

	uploadURL, err := s.storage.SignUploadURL(objectKey)
	if err != nil {
		return nil, NewExternalServiceError("oss", "sign_upload_url", "", err)
	}

	// The pending material row is written now so CompleteUpload only has to
	// flip it by object key; a signed slot that is never used stays pending.
	material := &models.ExamMaterial{
		ID:        uuid.New().String(),
		ExamID:    req.ExamID,
		ClassID:   req.ClassID,
		ObjectKey: objectKey,
	}
	if err := s.repo.Material().Create(ctx, nil, material); err != nil {
		return nil, fmt.Errorf("failed to record material: %w", err)
	}

	s.logger.InfoContext(ctx, "upload url created", "object_key", objectKey, "user_id", userID)

	return &UploadURLResponse{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
		ExpiresIn: int(s.storage.ExpirySeconds()),
	}, nil
}

// CompleteUpload acknowledges a finished upload and kicks off ingestion in
// the background. The caller gets an immediate response; extraction and
// indexing happen on their own clock.
func (s *uploadService) CompleteUpload(ctx context.Context, objectKey string, userID string) error {
	if s.storage == nil {
		return ErrUploadsNotConfigured
	}

	material, err := s.findMaterial(ctx, objectKey)
	if err != nil {
		return err
	}

	if err := s.requireOwnership(ctx, material, userID); err != nil {
		return err
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		s.generation.IngestMaterial(bgCtx, material)
	}()

	s.logger.InfoContext(ctx, "upload completed", "object_key", objectKey, "user_id", userID)
	return nil
}

// GetDownloadURL presigns a read. Unlike uploads, reads are open to anyone
// with access to the material's exam or group, not just its owner.
func (s *uploadService) GetDownloadURL(ctx context.Context, objectKey string, userID string) (*DownloadURLResponse, error) {
	if s.storage == nil {
		return nil, ErrUploadsNotConfigured
	}

	material, err := s.findMaterial(ctx, objectKey)
	if err != nil {
		return nil, err
	}

	if err := s.requireReadAccess(ctx, material, userID); err != nil {
		return nil, err
	}

	downloadURL, err := s.storage.SignDownloadURL(objectKey)
	if err != nil {
		return nil, NewExternalServiceError("oss", "sign_download_url", "", err)
	}

	return &DownloadURLResponse{
		DownloadURL: downloadURL,
		ObjectKey:   objectKey,
		ExpiresIn:   int(s.storage.ExpirySeconds()),
	}, nil
}

// findMaterial locates the pending row by object key under its scope prefix.
func (s *uploadService) findMaterial(ctx context.Context, objectKey string) (*models.ExamMaterial, error) {
	parts := strings.Split(objectKey, "/")
	if len(parts) >= 2 {
		scopeID := parts[1]
		var (
			materials []models.ExamMaterial
			err       error
		)
		switch parts[0] {
		case "exams":
			materials, err = s.repo.Material().GetByExam(ctx, nil, scopeID)
		case "classes":
			materials, err = s.repo.Material().GetByClass(ctx, nil, scopeID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get materials: %w", err)
		}
		for i := range materials {
			if materials[i].ObjectKey == objectKey {
				return &materials[i], nil
			}
		}
	}
	return nil, ErrMaterialNotFound
}

// requireReadAccess admits the scope's owner and, for exam materials, members
// of any group the exam is assigned to; for class materials, group members.
func (s *uploadService) requireReadAccess(ctx context.Context, material *models.ExamMaterial, userID string) error {
	switch {
	case material.ExamID != nil:
		exam, err := s.repo.Exam().GetByID(ctx, nil, *material.ExamID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if exam.CreatedBy == userID {
			return nil
		}
		assignments, err := s.repo.Exam().GetAssignedGroups(ctx, nil, *material.ExamID)
		if err != nil {
			return fmt.Errorf("failed to get exam groups: %w", err)
		}
		for _, a := range assignments {
			isMember, err := s.repo.Group().IsMember(ctx, nil, a.GroupID, userID)
			if err != nil {
				return fmt.Errorf("failed to check membership: %w", err)
			}
			if isMember {
				return nil
			}
		}
		return NewPermissionError(userID, *material.ExamID, "exam", "download", "exam is not assigned to any of your groups")
	case material.ClassID != nil:
		group, err := s.repo.Group().GetByID(ctx, nil, *material.ClassID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("failed to get group: %w", err)
		}
		if group.CreatedBy == userID {
			return nil
		}
		isMember, err := s.repo.Group().IsMember(ctx, nil, *material.ClassID, userID)
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if !isMember {
			return NewPermissionError(userID, *material.ClassID, "group", "download", "not a member of this group")
		}
	}
	return nil
}

func (s *uploadService) requireOwnership(ctx context.Context, material *models.ExamMaterial, userID string) error {
	switch {
	case material.ExamID != nil:
		exam, err := s.repo.Exam().GetByID(ctx, nil, *material.ExamID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if exam.CreatedBy != userID {
			return NewPermissionError(userID, *material.ExamID, "exam", "upload", "only the exam creator can complete this upload")
		}
	case material.ClassID != nil:
		group, err := s.repo.Group().GetByID(ctx, nil, *material.ClassID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("failed to get group: %w", err)
		}
		if group.CreatedBy != userID {
			return NewPermissionError(userID, *material.ClassID, "group", "upload", "only the group admin can complete this upload")
		}
	}
	return nil
}
