// Package activity logs and deletes workouts and runs the follow-up work an activity triggers.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	prommetrics "github.com/rowquest/rowquest-api/internal/metrics"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/notify"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/service/badges"
	"github.com/rowquest/rowquest-api/internal/service/journey"
	"github.com/rowquest/rowquest-api/internal/service/leaderboard"
	"github.com/rowquest/rowquest-api/internal/units"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// maxClockSkew bounds how far in the future occurred_at may be.
const maxClockSkew = 5 * time.Minute

// ActivityRepository interface for activity persistence.
type ActivityRepository interface {
	CreateWithDistance(ctx context.Context, activity *models.Activity) error
	DeleteWithReversal(ctx context.Context, id uint) (*models.Activity, error)
	GetByID(ctx context.Context, id uint) (*models.Activity, error)
	ListByUser(ctx context.Context, userID uint, filter repository.ActivityFilter) ([]models.Activity, error)
}

// TeamRepository interface for team operations.
type TeamRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Team, error)
}

// BadgeEvaluator awards badges unlocked by an activity.
type BadgeEvaluator interface {
	EvaluateActivity(ctx context.Context, user *models.User, activity *models.Activity) ([]models.Badge, error)
}

// LeaderboardCache is invalidated whenever distances change.
type LeaderboardCache interface {
	Invalidate(ctx context.Context) error
}

// RouteProvider returns a route's waypoints and journey length.
type RouteProvider interface {
	Waypoints(ctx context.Context, route string) ([]models.Waypoint, error)
	TotalDistance(route string, waypoints []models.Waypoint) float64
}

// Notifier announces waypoints reached by a team.
type Notifier interface {
	SendWaypointReached(ctx context.Context, e notify.WaypointReached) error
}

// Service handles activity logging.
type Service struct {
	activityRepo ActivityRepository
	teamRepo     TeamRepository
	badges       BadgeEvaluator
	leaderboard  LeaderboardCache
	routes       RouteProvider
	notifier     Notifier
	validate     *validator.Validate
	log          *logger.Logger
}

// NewService creates a new activity service.
func NewService(
	activityRepo *repository.ActivityRepository,
	teamRepo *repository.TeamRepository,
	badgeService *badges.Service,
	leaderboardService *leaderboard.Service,
	journeyService *journey.Service,
	notifier *notify.Client,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(activityRepo, teamRepo, badgeService, leaderboardService, journeyService, notifier, log)
}

// NewServiceWithInterfaces creates a new activity service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	activityRepo ActivityRepository,
	teamRepo TeamRepository,
	badges BadgeEvaluator,
	leaderboard LeaderboardCache,
	routes RouteProvider,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		activityRepo: activityRepo,
		teamRepo:     teamRepo,
		badges:       badges,
		leaderboard:  leaderboard,
		routes:       routes,
		notifier:     notifier,
		validate:     validator.New(),
		log:          log,
	}
}

// LogActivityInput is the payload for logging a workout. Rowing distance may be given in meters or
// kilometers, not both.
type LogActivityInput struct {
	Kind            string     `json:"kind" validate:"required,oneof=rowing strength"`
	DistanceM       *float64   `json:"distance_m" validate:"omitempty,gt=0,lte=1000000"`
	DistanceKm      *float64   `json:"distance_km" validate:"omitempty,gt=0,lte=1000"`
	DurationMinutes *float64   `json:"duration_minutes" validate:"omitempty,gt=0,lte=1440"`
	StrengthType    string     `json:"strength_type" validate:"omitempty,oneof=general kettlebell core"`
	Repetitions     *int       `json:"repetitions" validate:"omitempty,gte=0,lte=100000"`
	OccurredAt      *time.Time `json:"occurred_at"`
	Notes           string     `json:"notes" validate:"max=1000"`
}

// LogResult is the outcome of logging an activity.
type LogResult struct {
	Activity  *models.Activity `json:"activity"`
	NewBadges []models.Badge   `json:"new_badges"`
}

// LogActivity validates and stores an activity for the actor, credits rowing distance to the
// actor's team and evaluates badges. Badge evaluation happens after the activity is committed;
// its failure is logged and the activity stays recorded.
func (s *Service) LogActivity(ctx context.Context, actor *models.User, input LogActivityInput) (*LogResult, error) {
	activity, err := s.buildActivity(actor, input)
	if err != nil {
		prommetrics.RecordActivityLogged(input.Kind, "invalid")
		return nil, err
	}

	var team *models.Team
	if activity.IsRowing() && activity.TeamID != nil {
		team, err = s.teamRepo.GetByID(ctx, *activity.TeamID)
		if err != nil {
			s.log.Warn().Err(err).Uint("team_id", *activity.TeamID).Msg("Failed to read team before logging activity")
			team = nil
		}
	}

	if err := s.activityRepo.CreateWithDistance(ctx, activity); err != nil {
		prommetrics.RecordActivityLogged(activity.Kind, "error")
		return nil, fmt.Errorf("failed to log activity: %w", err)
	}

	prommetrics.RecordActivityLogged(activity.Kind, "success")
	if activity.IsRowing() {
		teamName := "none"
		if team != nil {
			teamName = team.Name
		}
		prommetrics.RecordDistanceRowed(teamName, activity.Distance())
	}

	s.log.Info().
		Uint("activity_id", activity.ID).
		Uint("user_id", actor.ID).
		Str("kind", activity.Kind).
		Float64("distance_m", activity.Distance()).
		Msg("Activity logged")

	s.invalidateLeaderboard(ctx, activity)

	if team != nil {
		s.announceWaypoints(ctx, team, team.TotalDistanceM, team.TotalDistanceM+activity.Distance())
	}

	result := &LogResult{Activity: activity, NewBadges: []models.Badge{}}
	earned, err := s.badges.EvaluateActivity(ctx, actor, activity)
	if err != nil {
		s.log.Error().Err(err).Uint("activity_id", activity.ID).Msg("Badge evaluation failed")
		return result, nil
	}
	if len(earned) > 0 {
		result.NewBadges = earned
	}
	return result, nil
}

func (s *Service) buildActivity(actor *models.User, input LogActivityInput) (*models.Activity, error) {
	const op = "activities.validate"

	if err := s.validate.Struct(&input); err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidInput, op, err)
	}

	now := time.Now().UTC()
	occurredAt := now
	if input.OccurredAt != nil {
		occurredAt = input.OccurredAt.UTC()
		if occurredAt.After(now.Add(maxClockSkew)) {
			return nil, apperrors.New(apperrors.InvalidInput, op, "occurred_at is in the future")
		}
	}

	activity := &models.Activity{
		UserID:          actor.ID,
		TeamID:          actor.TeamID,
		Kind:            input.Kind,
		DurationMinutes: input.DurationMinutes,
		Repetitions:     input.Repetitions,
		OccurredAt:      occurredAt,
		Notes:           input.Notes,
	}

	switch input.Kind {
	case models.ActivityRowing:
		if input.StrengthType != "" || input.Repetitions != nil {
			return nil, apperrors.New(apperrors.InvalidInput, op, "strength fields are not allowed on rowing activities")
		}
		switch {
		case input.DistanceM != nil && input.DistanceKm != nil:
			return nil, apperrors.New(apperrors.InvalidInput, op, "give distance_m or distance_km, not both")
		case input.DistanceM != nil:
			d := *input.DistanceM
			activity.DistanceM = &d
		case input.DistanceKm != nil:
			d := units.KilometersToMeters(*input.DistanceKm)
			activity.DistanceM = &d
		default:
			return nil, apperrors.New(apperrors.InvalidInput, op, "rowing activities require a distance")
		}

	case models.ActivityStrength:
		if input.DistanceM != nil || input.DistanceKm != nil {
			return nil, apperrors.New(apperrors.InvalidInput, op, "strength activities have no distance")
		}
		activity.StrengthType = input.StrengthType
		if activity.StrengthType == "" {
			activity.StrengthType = models.StrengthGeneral
		}
	}

	return activity, nil
}

// DeleteActivity deletes one of the actor's activities (any activity for admins) and reverses its
// team distance contribution.
func (s *Service) DeleteActivity(ctx context.Context, actor *models.User, id uint) (*models.Activity, error) {
	existing, err := s.activityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, apperrors.New(apperrors.Forbidden, "activities.delete", "activity belongs to another user")
	}

	deleted, err := s.activityRepo.DeleteWithReversal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete activity: %w", err)
	}

	prommetrics.RecordActivityDeleted(deleted.Kind)
	s.log.Info().
		Uint("activity_id", id).
		Uint("user_id", deleted.UserID).
		Float64("reversed_distance_m", deleted.Distance()).
		Msg("Activity deleted")

	s.invalidateLeaderboard(ctx, deleted)
	return deleted, nil
}

// ListUserActivities lists a user's activities, most recent first.
func (s *Service) ListUserActivities(ctx context.Context, userID uint, filter repository.ActivityFilter) ([]models.Activity, error) {
	if filter.Kind != "" && filter.Kind != models.ActivityRowing && filter.Kind != models.ActivityStrength {
		return nil, apperrors.New(apperrors.InvalidInput, "activities.list", fmt.Sprintf("unknown kind %q", filter.Kind))
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperrors.New(apperrors.InvalidInput, "activities.list", "from must be before to")
	}
	return s.activityRepo.ListByUser(ctx, userID, filter)
}

func (s *Service) invalidateLeaderboard(ctx context.Context, activity *models.Activity) {
	if !activity.IsRowing() || s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate leaderboard cache")
	}
}

// announceWaypoints notifies the furthest waypoint passed when the team total moved from before
// to after.
func (s *Service) announceWaypoints(ctx context.Context, team *models.Team, before, after float64) {
	if s.routes == nil || s.notifier == nil || after <= before {
		return
	}

	waypoints, err := s.routes.Waypoints(ctx, team.Route)
	if err != nil {
		s.log.Warn().Err(err).Str("route", team.Route).Msg("Failed to load route for waypoint check")
		return
	}

	crossed := -1
	for i, wp := range waypoints {
		if wp.DistanceFromStartM > before && wp.DistanceFromStartM <= after {
			crossed = i
		}
	}
	if crossed < 0 {
		return
	}

	total := s.routes.TotalDistance(team.Route, waypoints)
	pct, err := journey.CompletionPercentage(after, total)
	if err != nil {
		s.log.Warn().Err(err).Str("route", team.Route).Msg("Failed to compute completion")
		return
	}

	event := notify.WaypointReached{
		TeamName:             team.Name,
		WaypointName:         waypoints[crossed].Name,
		CompletionPercentage: pct,
	}
	if crossed+1 < len(waypoints) {
		event.NextWaypointName = waypoints[crossed+1].Name
	}

	if err := s.notifier.SendWaypointReached(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("team", team.Name).Msg("Failed to send waypoint notification")
	}
}
