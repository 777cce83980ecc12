package badges

import (
	"context"
	"fmt"

	"github.com/rowquest/rowquest-api/internal/models"
)

// subject is what a badge requirement is measured against.
type subject struct {
	user     *models.User
	team     *models.Team     // nil when the user has no team
	activity *models.Activity // nil outside of activity-triggered evaluation
}

// measurements memoizes per-requirement values within one evaluation so several badges of the
// same type cost a single query.
type measurements map[string]float64

// relevantRequirements lists the requirement types an activity can move.
func relevantRequirements(activity *models.Activity) []string {
	if activity.IsRowing() {
		return []string{models.RequirementRowingDistance, models.RequirementTeamContribution}
	}

	types := []string{models.RequirementStrengthSessions}
	switch activity.StrengthType {
	case models.StrengthKettlebell:
		types = append(types, models.RequirementKettlebellSwings)
	case models.StrengthCore:
		types = append(types, models.RequirementCoreWorkouts)
	}
	return types
}

// cumulativeRequirements are the types that can be evaluated without a triggering activity.
var cumulativeRequirements = []string{
	models.RequirementStrengthSessions,
	models.RequirementKettlebellSwings,
	models.RequirementCoreWorkouts,
	models.RequirementTeamContribution,
}

// qualifies reports whether the subject meets the badge requirement.
func (s *Service) qualifies(ctx context.Context, badge *models.Badge, sub *subject, cache measurements) (bool, error) {
	if !badge.AppliesToTeam(sub.user.TeamID) {
		return false, nil
	}

	value, ok := cache[badge.RequirementType]
	if !ok {
		var err error
		value, err = s.measure(ctx, badge.RequirementType, sub)
		if err != nil {
			return false, err
		}
		cache[badge.RequirementType] = value
	}

	return value >= badge.RequirementValue, nil
}

// measure computes the subject's current value for a requirement type.
func (s *Service) measure(ctx context.Context, requirementType string, sub *subject) (float64, error) {
	switch requirementType {
	case models.RequirementRowingDistance:
		// Single-session threshold: only the activity being evaluated counts.
		if sub.activity == nil || !sub.activity.IsRowing() {
			return 0, nil
		}
		return sub.activity.Distance(), nil

	case models.RequirementStrengthSessions:
		n, err := s.activityRepo.CountStrength(ctx, sub.user.ID, "")
		if err != nil {
			return 0, fmt.Errorf("failed to count strength sessions: %w", err)
		}
		return float64(n), nil

	case models.RequirementKettlebellSwings:
		n, err := s.activityRepo.SumRepetitions(ctx, sub.user.ID, models.StrengthKettlebell)
		if err != nil {
			return 0, fmt.Errorf("failed to sum kettlebell swings: %w", err)
		}
		return float64(n), nil

	case models.RequirementCoreWorkouts:
		n, err := s.activityRepo.CountStrength(ctx, sub.user.ID, models.StrengthCore)
		if err != nil {
			return 0, fmt.Errorf("failed to count core workouts: %w", err)
		}
		return float64(n), nil

	case models.RequirementTeamContribution:
		if sub.team == nil {
			return 0, nil
		}
		return sub.team.TotalDistanceM, nil

	default:
		return 0, fmt.Errorf("unsupported requirement type: %s", requirementType)
	}
}
