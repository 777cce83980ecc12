package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rowquest/rowquest-api/internal/models"
)

// ActivityFilter narrows activity queries. Zero values mean "any".
type ActivityFilter struct {
	Kind         string
	StrengthType string
	From         *time.Time
	To           *time.Time
	Limit        int
}

func (f ActivityFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.StrengthType != "" {
		q = q.Where("strength_type = ?", f.StrengthType)
	}
	if f.From != nil {
		q = q.Where("occurred_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("occurred_at < ?", *f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q
}

// ActivityRepository handles activity-related database operations.
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// CreateWithDistance inserts the activity and, for rowing activities attributed to a team, adds its
// distance to the team counter in the same transaction.
func (r *ActivityRepository) CreateWithDistance(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(activity).Error; err != nil {
			return classify("activities.create", fmt.Errorf("failed to create activity: %w", err))
		}
		if activity.IsRowing() && activity.TeamID != nil && activity.Distance() > 0 {
			return NewTeamRepository(&DB{tx}).UpdateTeamDistance(ctx, *activity.TeamID, activity.Distance())
		}
		return nil
	})
}

// DeleteWithReversal deletes the activity and subtracts its distance from the team counter it was
// credited to. It returns the deleted activity.
func (r *ActivityRepository) DeleteWithReversal(ctx context.Context, id uint) (*models.Activity, error) {
	var activity models.Activity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&activity, id).Error; err != nil {
			return classify("activities.delete", fmt.Errorf("failed to get activity %d: %w", id, err))
		}
		if err := tx.Delete(&models.Activity{}, id).Error; err != nil {
			return classify("activities.delete", fmt.Errorf("failed to delete activity %d: %w", id, err))
		}
		if activity.IsRowing() && activity.TeamID != nil && activity.Distance() > 0 {
			return NewTeamRepository(&DB{tx}).UpdateTeamDistance(ctx, *activity.TeamID, -activity.Distance())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetByID retrieves an activity by ID.
func (r *ActivityRepository) GetByID(ctx context.Context, id uint) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return nil, classify("activities.get_by_id", fmt.Errorf("failed to get activity %d: %w", id, err))
	}
	return &activity, nil
}

// ListByUser retrieves a user's activities ordered by occurrence, most recent first.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID uint, filter ActivityFilter) ([]models.Activity, error) {
	var activities []models.Activity
	q := filter.apply(r.db.WithContext(ctx).Where("user_id = ?", userID))
	if err := q.Order("occurred_at DESC, id DESC").Find(&activities).Error; err != nil {
		return nil, classify("activities.list_by_user", fmt.Errorf("failed to list activities for user %d: %w", userID, err))
	}
	return activities, nil
}

// CountStrength counts a user's strength sessions. An empty strengthType counts every subtype.
func (r *ActivityRepository) CountStrength(ctx context.Context, userID uint, strengthType string) (int64, error) {
	var count int64
	q := ActivityFilter{Kind: models.ActivityStrength, StrengthType: strengthType}.
		apply(r.db.WithContext(ctx).Model(&models.Activity{}).Where("user_id = ?", userID))
	if err := q.Count(&count).Error; err != nil {
		return 0, classify("activities.count_strength", fmt.Errorf("failed to count strength sessions: %w", err))
	}
	return count, nil
}

// SumRepetitions sums repetitions over a user's strength sessions of the given subtype.
func (r *ActivityRepository) SumRepetitions(ctx context.Context, userID uint, strengthType string) (int64, error) {
	var total int64
	q := ActivityFilter{Kind: models.ActivityStrength, StrengthType: strengthType}.
		apply(r.db.WithContext(ctx).Model(&models.Activity{}).Where("user_id = ?", userID))
	if err := q.Select("COALESCE(SUM(repetitions), 0)").Scan(&total).Error; err != nil {
		return 0, classify("activities.sum_repetitions", fmt.Errorf("failed to sum repetitions: %w", err))
	}
	return total, nil
}

// sumTeamDistance recomputes a team's rowed meters from the activity table.
func sumTeamDistance(tx *gorm.DB, teamID uint) (float64, error) {
	var total float64
	err := tx.Model(&models.Activity{}).
		Where("team_id = ? AND kind = ?", teamID, models.ActivityRowing).
		Select("COALESCE(SUM(distance_m), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, classify("activities.sum_team_distance", fmt.Errorf("failed to sum distance for team %d: %w", teamID, err))
	}
	return total, nil
}
