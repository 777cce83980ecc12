package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rowquest/rowquest-api/internal/models"
)

// UserDistance is one user's rowing total over a period.
type UserDistance struct {
	UserID    uint
	Username  string
	TeamID    *uint
	DistanceM float64
	Sessions  int64
}

// TeamDistance is one team's rowing total over a period.
type TeamDistance struct {
	TeamID    uint
	Name      string
	Route     string
	DistanceM float64
	Sessions  int64
}

// LeaderboardRepository runs the aggregate queries behind the leaderboards.
type LeaderboardRepository struct {
	db *DB
}

// NewLeaderboardRepository creates a new leaderboard repository.
func NewLeaderboardRepository(db *DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// UserDistances sums rowing distance per user since the given time (nil for all time), optionally
// restricted to one team's members. Results are ordered by distance descending.
func (r *LeaderboardRepository) UserDistances(ctx context.Context, since *time.Time, teamID *uint, limit int) ([]UserDistance, error) {
	var results []UserDistance

	q := r.db.WithContext(ctx).
		Table("activities").
		Select("activities.user_id AS user_id, users.username AS username, users.team_id AS team_id, "+
			"COALESCE(SUM(activities.distance_m), 0) AS distance_m, COUNT(*) AS sessions").
		Joins("JOIN users ON users.id = activities.user_id").
		Where("activities.kind = ?", models.ActivityRowing)
	if since != nil {
		q = q.Where("activities.occurred_at >= ?", *since)
	}
	if teamID != nil {
		q = q.Where("users.team_id = ?", *teamID)
	}
	q = q.Group("activities.user_id, users.username, users.team_id").
		Order("distance_m DESC, activities.user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(&results).Error; err != nil {
		return nil, classify("leaderboard.user_distances", fmt.Errorf("failed to aggregate user distances: %w", err))
	}
	return results, nil
}

// TeamDistances sums rowing distance per team since the given time (nil for all time). Teams with
// no activity in the period are included with zero distance.
func (r *LeaderboardRepository) TeamDistances(ctx context.Context, since *time.Time, limit int) ([]TeamDistance, error) {
	var results []TeamDistance

	join := "LEFT JOIN activities ON activities.team_id = teams.id AND activities.kind = ?"
	args := []interface{}{models.ActivityRowing}
	if since != nil {
		join += " AND activities.occurred_at >= ?"
		args = append(args, *since)
	}

	q := r.db.WithContext(ctx).
		Table("teams").
		Select("teams.id AS team_id, teams.name AS name, teams.route AS route, "+
			"COALESCE(SUM(activities.distance_m), 0) AS distance_m, COUNT(activities.id) AS sessions").
		Joins(join, args...).
		Group("teams.id, teams.name, teams.route").
		Order("distance_m DESC, teams.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(&results).Error; err != nil {
		return nil, classify("leaderboard.team_distances", fmt.Errorf("failed to aggregate team distances: %w", err))
	}
	return results, nil
}
