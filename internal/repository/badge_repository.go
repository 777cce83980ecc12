package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rowquest/rowquest-api/internal/models"
)

// BadgeRepository handles badge-related database operations.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Create creates a new badge in the database.
func (r *BadgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	if err := r.db.WithContext(ctx).Create(badge).Error; err != nil {
		return classify("badges.create", fmt.Errorf("failed to create badge: %w", err))
	}
	return nil
}

// GetByID retrieves a badge by its ID.
func (r *BadgeRepository) GetByID(ctx context.Context, id uint) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.WithContext(ctx).First(&badge, id).Error; err != nil {
		return nil, classify("badges.get_by_id", fmt.Errorf("failed to get badge %d: %w", id, err))
	}
	return &badge, nil
}

// GetAll retrieves all badges from the database.
func (r *BadgeRepository) GetAll(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&badges).Error; err != nil {
		return nil, classify("badges.get_all", fmt.Errorf("failed to list badges: %w", err))
	}
	return badges, nil
}

// GetApplicable retrieves the global badges plus those scoped to teamID, optionally limited to the
// given requirement types.
func (r *BadgeRepository) GetApplicable(ctx context.Context, teamID *uint, requirementTypes ...string) ([]models.Badge, error) {
	var badges []models.Badge

	q := r.db.WithContext(ctx)
	if teamID != nil {
		q = q.Where("team_id IS NULL OR team_id = ?", *teamID)
	} else {
		q = q.Where("team_id IS NULL")
	}
	if len(requirementTypes) > 0 {
		q = q.Where("requirement_type IN ?", requirementTypes)
	}

	if err := q.Order("requirement_value ASC, id ASC").Find(&badges).Error; err != nil {
		return nil, classify("badges.get_applicable", fmt.Errorf("failed to list applicable badges: %w", err))
	}
	return badges, nil
}

// Delete deletes a badge and every award of it.
func (r *BadgeRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("badge_id = ?", id).Delete(&models.UserBadge{}).Error; err != nil {
			return classify("badges.delete", fmt.Errorf("failed to delete awards of badge %d: %w", id, err))
		}
		result := tx.Delete(&models.Badge{}, id)
		if result.Error != nil {
			return classify("badges.delete", fmt.Errorf("failed to delete badge %d: %w", id, result.Error))
		}
		if result.RowsAffected == 0 {
			return classify("badges.delete", fmt.Errorf("failed to delete badge %d: %w", id, errNotFound))
		}
		return nil
	})
}

// AwardBadge records that the user earned the badge. It reports false when the award already
// existed; the unique (user_id, badge_id) index makes concurrent awards collapse into one row.
func (r *BadgeRepository) AwardBadge(ctx context.Context, userID, badgeID uint) (bool, error) {
	userBadge := &models.UserBadge{
		UserID:   userID,
		BadgeID:  badgeID,
		EarnedAt: time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(userBadge)
	if result.Error != nil {
		return false, classify("badges.award", fmt.Errorf("failed to award badge %d to user %d: %w", badgeID, userID, result.Error))
	}
	return result.RowsAffected > 0, nil
}

// GetUserBadges retrieves all badges earned by a user with badge details preloaded.
func (r *BadgeRepository) GetUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	var userBadges []models.UserBadge
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Badge").
		Order("earned_at DESC").
		Find(&userBadges).Error
	if err != nil {
		return nil, classify("badges.get_user_badges", fmt.Errorf("failed to get badges of user %d: %w", userID, err))
	}
	return userBadges, nil
}

// GetUsersWithBadge retrieves all users who have earned a specific badge.
func (r *BadgeRepository) GetUsersWithBadge(ctx context.Context, badgeID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_badges ON user_badges.user_id = users.id").
		Where("user_badges.badge_id = ?", badgeID).
		Order("user_badges.earned_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, classify("badges.get_holders", fmt.Errorf("failed to get holders of badge %d: %w", badgeID, err))
	}
	return users, nil
}

// GetBadgeHoldersCount returns the number of users who have earned a specific badge.
func (r *BadgeRepository) GetBadgeHoldersCount(ctx context.Context, badgeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBadge{}).
		Where("badge_id = ?", badgeID).
		Count(&count).Error
	if err != nil {
		return 0, classify("badges.count_holders", fmt.Errorf("failed to count holders of badge %d: %w", badgeID, err))
	}
	return count, nil
}

// GetUserBadgeCount returns the total number of badges a user has earned.
func (r *BadgeRepository) GetUserBadgeCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, classify("badges.count_user_badges", fmt.Errorf("failed to count badges of user %d: %w", userID, err))
	}
	return count, nil
}
