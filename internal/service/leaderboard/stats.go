package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/service/journey"
	"github.com/rowquest/rowquest-api/internal/units"
)

// UserStats represents comprehensive statistics for a user.
type UserStats struct {
	UserID           uint           `json:"user_id"`
	Username         string         `json:"username"`
	TeamID           *uint          `json:"team_id"`
	Period           string         `json:"period"`
	DistanceM        float64        `json:"distance_m"`
	DistanceKm       float64        `json:"distance_km"`
	RowingSessions   int            `json:"rowing_sessions"`
	StrengthSessions int            `json:"strength_sessions"`
	TrainingMinutes  float64        `json:"training_minutes"`
	Badges           []models.Badge `json:"badges"`
	GlobalRank       int            `json:"global_rank"`
	TeamRank         int            `json:"team_rank"`
}

// GetUserStats returns comprehensive statistics for a user.
func (s *Service) GetUserStats(ctx context.Context, userID uint, period string) (*UserStats, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	period, since, err := periodStart(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	activities, err := s.activityRepo.ListByUser(ctx, userID, repository.ActivityFilter{From: since})
	if err != nil {
		return nil, fmt.Errorf("failed to get user activities: %w", err)
	}

	stats := &UserStats{
		UserID:   userID,
		Username: user.Username,
		TeamID:   user.TeamID,
		Period:   period,
		Badges:   []models.Badge{},
	}

	stats.DistanceM = journey.SumRowingDistance(activities)
	stats.DistanceKm = units.MetersToKilometers(stats.DistanceM)
	for i := range activities {
		if activities[i].IsRowing() {
			stats.RowingSessions++
		} else {
			stats.StrengthSessions++
		}
		if activities[i].DurationMinutes != nil {
			stats.TrainingMinutes += *activities[i].DurationMinutes
		}
	}

	userBadges, err := s.badgeRepo.GetUserBadges(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get user badges")
	} else {
		for _, ub := range userBadges {
			if ub.Badge.ID != 0 {
				stats.Badges = append(stats.Badges, ub.Badge)
			}
		}
	}

	globalRank, err := s.GetUserRank(ctx, userID, period)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get global rank")
	} else {
		stats.GlobalRank = globalRank
	}

	if user.TeamID != nil {
		members, err := s.GetTeamMembersLeaderboard(ctx, *user.TeamID, period, 0)
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Uint("team_id", *user.TeamID).Msg("Failed to get team rank")
		} else {
			stats.TeamRank = rankOf(members, userID)
		}
	}

	return stats, nil
}
