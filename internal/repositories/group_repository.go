package repositories

import (
	"context"

	"github.com/quizbuzz/exam-service/internal/models"
	"gorm.io/gorm"
)

// GroupRepository interface for group and membership operations.
type GroupRepository interface {
	Create(ctx context.Context, tx *gorm.DB, group *models.Group) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Group, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id string) (*models.Group, error)
	GetByFilters(ctx context.Context, tx *gorm.DB, filters GroupFilters) ([]models.Group, int64, error)
	GetVisibleToUser(ctx context.Context, tx *gorm.DB, userID string) ([]models.Group, error)
	ExistsByNameAndCreator(ctx context.Context, tx *gorm.DB, name, creatorID string) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	DeleteByCreator(ctx context.Context, tx *gorm.DB, creatorID string) error

	// Membership. AddMember is insert-if-absent on (group_id, user_id) and
	// reports whether a new row was written, so a repeated join is a no-op.
	AddMember(ctx context.Context, tx *gorm.DB, member *models.GroupMember) (bool, error)
	RemoveMember(ctx context.Context, tx *gorm.DB, groupID, userID string) (bool, error)
	RemoveMemberEverywhere(ctx context.Context, tx *gorm.DB, userID string) error
	IsMember(ctx context.Context, tx *gorm.DB, groupID, userID string) (bool, error)
	GetMembers(ctx context.Context, tx *gorm.DB, groupID string) ([]models.GroupMember, error)

	// Materials attached to the group by its admin.
	AddMaterial(ctx context.Context, tx *gorm.DB, material *models.GroupMaterial) error
	GetMaterials(ctx context.Context, tx *gorm.DB, groupID string) ([]models.GroupMaterial, error)
	RemoveMaterial(ctx context.Context, tx *gorm.DB, groupID, materialID string) (bool, error)

	GetStats(ctx context.Context, tx *gorm.DB, groupID string) (*GroupStats, error)
}
