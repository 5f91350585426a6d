package repositories

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"gorm.io/gorm"
)

// UserRepository interface for user identity operations.
type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)

	// Validation and checks
	ExistsByUsername(ctx context.Context, tx *gorm.DB, username string) (bool, error)
	ExistsByEmail(ctx context.Context, tx *gorm.DB, email string) (bool, error)

	// Delete removes the user row itself; cascading cleanup of the user's
	// analytics, groups, sheets and messages is orchestrated by the service
	// inside one transaction.
	Delete(ctx context.Context, tx *gorm.DB, id string) error
}
