package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quizbuzz/exam-service/internal/cache"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
)

type GroupPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewGroupPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.GroupRepository {
	return &GroupPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (g *GroupPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return g.db
}

// ===== BASIC CRUD OPERATIONS =====

// Create creates a new group and invalidates list caches
func (g *GroupPostgreSQL) Create(ctx context.Context, tx *gorm.DB, group *models.Group) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, g.cacheManager.Group, fmt.Sprintf("creator:%s:*", group.CreatedBy))
	cache.SafeInvalidatePattern(ctx, g.cacheManager.Group, "list:*")

	return nil
}

// GetByID retrieves a group by ID with caching
func (g *GroupPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Group, error) {
	db := g.getDB(tx)
	cacheKey := fmt.Sprintf("id:%s", id)
	var group models.Group

	err := g.cacheManager.Group.CacheOrExecute(ctx, cacheKey, &group, cache.GroupCacheConfig.TTL, func() (interface{}, error) {
		var dbGroup models.Group
		if err := db.WithContext(ctx).Where("id = ?", id).First(&dbGroup).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, gorm.ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to get group: %w", err)
		}
		return &dbGroup, nil
	})

	if err != nil {
		return nil, err
	}

	return &group, nil
}

// GetByIDWithDetails retrieves a group with members and materials preloaded
func (g *GroupPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id string) (*models.Group, error) {
	db := g.getDB(tx)
	var group models.Group
	if err := db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Materials", func(db *gorm.DB) *gorm.DB {
			return db.Order("uploaded_at ASC")
		}).
		Where("id = ?", id).
		First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get group with details: %w", err)
	}
	return &group, nil
}

// GetByFilters retrieves groups matching the filters with a total count
func (g *GroupPostgreSQL) GetByFilters(ctx context.Context, tx *gorm.DB, filters repositories.GroupFilters) ([]models.Group, int64, error) {
	db := g.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Group{})

	if filters.CreatedBy != nil {
		query = query.Where("groups.created_by = ?", *filters.CreatedBy)
	}
	if filters.MemberID != nil {
		query = query.Joins("JOIN group_members ON group_members.group_id = groups.id").
			Where("group_members.user_id = ?", *filters.MemberID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	var groups []models.Group
	query = g.helpers.ApplyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)
	if err := query.Find(&groups).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get groups: %w", err)
	}

	return groups, total, nil
}

// GetVisibleToUser returns groups the user created or joined
func (g *GroupPostgreSQL) GetVisibleToUser(ctx context.Context, tx *gorm.DB, userID string) ([]models.Group, error) {
	db := g.getDB(tx)
	var groups []models.Group
	err := db.WithContext(ctx).
		Distinct("groups.*").
		Joins("LEFT JOIN group_members ON group_members.group_id = groups.id").
		Where("groups.created_by = ? OR group_members.user_id = ?", userID, userID).
		Order("groups.created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get groups for user: %w", err)
	}
	return groups, nil
}

// ExistsByNameAndCreator checks for a duplicate group name under one creator
func (g *GroupPostgreSQL) ExistsByNameAndCreator(ctx context.Context, tx *gorm.DB, name, creatorID string) (bool, error) {
	db := g.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Group{}).
		Where("name = ? AND created_by = ?", name, creatorID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check group existence: %w", err)
	}
	return count > 0, nil
}

// Delete removes a group with its members and materials
func (g *GroupPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	db := g.getDB(tx)

	var group models.Group
	if err := db.WithContext(ctx).Select("id, created_by").Where("id = ?", id).First(&group).Error; err != nil {
		return fmt.Errorf("failed to get group before delete: %w", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete group members: %w", err)
		}
		if err := tx.WithContext(ctx).Where("group_id = ?", id).Delete(&models.GroupMaterial{}).Error; err != nil {
			return fmt.Errorf("failed to delete group materials: %w", err)
		}
		if err := tx.WithContext(ctx).Where("group_id = ?", id).Delete(&models.ExamGroup{}).Error; err != nil {
			return fmt.Errorf("failed to delete group exam assignments: %w", err)
		}
		if err := tx.WithContext(ctx).Where("id = ?", id).Delete(&models.Group{}).Error; err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		return nil
	})

	if err != nil {
		return err
	}

	cache.InvalidateGroupCache(ctx, g.cacheManager, id, group.CreatedBy)

	return nil
}

// DeleteByCreator removes every group a user created, used by account deletion
func (g *GroupPostgreSQL) DeleteByCreator(ctx context.Context, tx *gorm.DB, creatorID string) error {
	db := g.getDB(tx)

	var groupIDs []string
	if err := db.WithContext(ctx).
		Model(&models.Group{}).
		Where("created_by = ?", creatorID).
		Pluck("id", &groupIDs).Error; err != nil {
		return fmt.Errorf("failed to list groups by creator: %w", err)
	}

	for _, id := range groupIDs {
		if err := g.Delete(ctx, db, id); err != nil {
			return err
		}
	}

	return nil
}

// ===== MEMBERSHIP OPERATIONS =====

// AddMember inserts the membership row unless it already exists
func (g *GroupPostgreSQL) AddMember(ctx context.Context, tx *gorm.DB, member *models.GroupMember) (bool, error) {
	db := g.getDB(tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(member)
	if result.Error != nil {
		return false, fmt.Errorf("failed to add group member: %w", result.Error)
	}

	added := result.RowsAffected > 0
	if added {
		cache.SafeInvalidatePattern(ctx, g.cacheManager.Group, fmt.Sprintf("member:%s:*", member.GroupID))
		cache.SafeDelete(ctx, g.cacheManager.Group, fmt.Sprintf("details:%s", member.GroupID))
	}

	return added, nil
}

// RemoveMember deletes the membership row and reports whether it existed
func (g *GroupPostgreSQL) RemoveMember(ctx context.Context, tx *gorm.DB, groupID, userID string) (bool, error) {
	db := g.getDB(tx)
	result := db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to remove group member: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		cache.SafeInvalidatePattern(ctx, g.cacheManager.Group, fmt.Sprintf("member:%s:*", groupID))
		cache.SafeDelete(ctx, g.cacheManager.Group, fmt.Sprintf("details:%s", groupID))
	}

	return result.RowsAffected > 0, nil
}

// RemoveMemberEverywhere drops a user from every group, used by account deletion
func (g *GroupPostgreSQL) RemoveMemberEverywhere(ctx context.Context, tx *gorm.DB, userID string) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.GroupMember{}).Error; err != nil {
		return fmt.Errorf("failed to remove user memberships: %w", err)
	}
	return nil
}

// IsMember checks membership with a short-lived existence cache
func (g *GroupPostgreSQL) IsMember(ctx context.Context, tx *gorm.DB, groupID, userID string) (bool, error) {
	db := g.getDB(tx)
	cacheKey := fmt.Sprintf("member:%s:%s", groupID, userID)

	var isMember bool
	err := g.cacheManager.Exists.CacheOrExecute(ctx, cacheKey, &isMember, cache.ExistsCacheConfig.TTL, func() (interface{}, error) {
		var count int64
		if err := db.WithContext(ctx).
			Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, userID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check membership: %w", err)
		}
		return count > 0, nil
	})
	if err != nil {
		return false, err
	}

	return isMember, nil
}

// GetMembers lists group members ordered by join time
func (g *GroupPostgreSQL) GetMembers(ctx context.Context, tx *gorm.DB, groupID string) ([]models.GroupMember, error) {
	db := g.getDB(tx)
	var members []models.GroupMember
	if err := db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	return members, nil
}

// ===== MATERIAL OPERATIONS =====

// AddMaterial attaches a study material record to the group
func (g *GroupPostgreSQL) AddMaterial(ctx context.Context, tx *gorm.DB, material *models.GroupMaterial) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).Create(material).Error; err != nil {
		return fmt.Errorf("failed to add group material: %w", err)
	}

	cache.SafeDelete(ctx, g.cacheManager.Group, fmt.Sprintf("details:%s", material.GroupID))

	return nil
}

// GetMaterials lists material records for a group
func (g *GroupPostgreSQL) GetMaterials(ctx context.Context, tx *gorm.DB, groupID string) ([]models.GroupMaterial, error) {
	db := g.getDB(tx)
	var materials []models.GroupMaterial
	if err := db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("uploaded_at ASC").
		Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("failed to get group materials: %w", err)
	}
	return materials, nil
}

// RemoveMaterial deletes a material record and reports whether it existed
func (g *GroupPostgreSQL) RemoveMaterial(ctx context.Context, tx *gorm.DB, groupID, materialID string) (bool, error) {
	db := g.getDB(tx)
	result := db.WithContext(ctx).
		Where("group_id = ? AND id = ?", groupID, materialID).
		Delete(&models.GroupMaterial{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to remove group material: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		cache.SafeDelete(ctx, g.cacheManager.Group, fmt.Sprintf("details:%s", groupID))
	}

	return result.RowsAffected > 0, nil
}

// ===== STATISTICS =====

// GetStats returns member, material and exam counts for one group
func (g *GroupPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, groupID string) (*repositories.GroupStats, error) {
	db := g.getDB(tx)
	cacheKey := fmt.Sprintf("group:%s", groupID)
	var stats repositories.GroupStats

	err := g.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		var dbStats repositories.GroupStats

		var memberCount int64
		if err := db.WithContext(ctx).
			Model(&models.GroupMember{}).
			Where("group_id = ?", groupID).
			Count(&memberCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count members: %w", err)
		}
		dbStats.MemberCount = int(memberCount)

		var materialCount int64
		if err := db.WithContext(ctx).
			Model(&models.GroupMaterial{}).
			Where("group_id = ?", groupID).
			Count(&materialCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count materials: %w", err)
		}
		dbStats.MaterialCount = int(materialCount)

		var examCount int64
		if err := db.WithContext(ctx).
			Model(&models.ExamGroup{}).
			Where("group_id = ?", groupID).
			Count(&examCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count exams: %w", err)
		}
		dbStats.ExamCount = int(examCount)

		return &dbStats, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
