package journey

import (
	"context"
	"fmt"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	prommetrics "github.com/rowquest/rowquest-api/internal/metrics"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/units"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// WaypointRepository interface for waypoint operations.
type WaypointRepository interface {
	GetByRoute(ctx context.Context, route string) ([]models.Waypoint, error)
}

// TeamRepository interface for team operations.
type TeamRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Team, error)
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// ActivityRepository interface for activity operations.
type ActivityRepository interface {
	ListByUser(ctx context.Context, userID uint, filter repository.ActivityFilter) ([]models.Activity, error)
}

// Progress is the derived view of cumulative distance along a route.
type Progress struct {
	Route                  string    `json:"route"`
	CumulativeDistanceM    float64   `json:"cumulative_distance_m"`
	CumulativeDistanceKm   float64   `json:"cumulative_distance_km"`
	TotalJourneyDistanceM  float64   `json:"total_journey_distance_m"`
	TotalJourneyDistanceKm float64   `json:"total_journey_distance_km"`
	CompletionPercentage   int       `json:"completion_percentage"`
	Position               *Position `json:"position"`
}

// TeamProgress is a team's journey progress.
type TeamProgress struct {
	TeamID   uint   `json:"team_id"`
	TeamName string `json:"team_name"`
	Progress
}

// UserProgress is one user's lifetime contribution mapped onto their team's route.
type UserProgress struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Progress
}

// Service computes journey progress for teams and users.
type Service struct {
	waypointRepo WaypointRepository
	teamRepo     TeamRepository
	userRepo     UserRepository
	activityRepo ActivityRepository
	defaultRoute string
	totalM       float64
	log          *logger.Logger
}

// NewService creates a new journey service. totalDistanceM overrides the journey length of
// defaultRoute; zero means the distance of its last waypoint.
func NewService(
	waypointRepo *repository.WaypointRepository,
	teamRepo *repository.TeamRepository,
	userRepo *repository.UserRepository,
	activityRepo *repository.ActivityRepository,
	defaultRoute string,
	totalDistanceM float64,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(waypointRepo, teamRepo, userRepo, activityRepo, defaultRoute, totalDistanceM, log)
}

// NewServiceWithInterfaces creates a new journey service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	waypointRepo WaypointRepository,
	teamRepo TeamRepository,
	userRepo UserRepository,
	activityRepo ActivityRepository,
	defaultRoute string,
	totalDistanceM float64,
	log *logger.Logger,
) *Service {
	return &Service{
		waypointRepo: waypointRepo,
		teamRepo:     teamRepo,
		userRepo:     userRepo,
		activityRepo: activityRepo,
		defaultRoute: defaultRoute,
		totalM:       totalDistanceM,
		log:          log,
	}
}

// Waypoints returns the validated waypoint table of a route.
func (s *Service) Waypoints(ctx context.Context, route string) ([]models.Waypoint, error) {
	if route == "" {
		route = s.defaultRoute
	}
	waypoints, err := s.waypointRepo.GetByRoute(ctx, route)
	if err != nil {
		return nil, fmt.Errorf("failed to get waypoints for route %s: %w", route, err)
	}
	if len(waypoints) == 0 {
		return nil, apperrors.New(apperrors.NotFound, "journey.waypoints", fmt.Sprintf("route %s has no waypoints", route))
	}
	if err := ValidateWaypoints(waypoints); err != nil {
		s.log.Error().Err(err).Str("route", route).Msg("Route configuration is invalid")
		return nil, err
	}
	return waypoints, nil
}

// TeamProgress computes a team's completion and position from its distance counter.
func (s *Service) TeamProgress(ctx context.Context, teamID uint) (*TeamProgress, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	progress, err := s.progress(ctx, team.Route, team.TotalDistanceM)
	if err != nil {
		return nil, err
	}

	prommetrics.SetTeamCompletion(team.Name, progress.CompletionPercentage)

	return &TeamProgress{TeamID: team.ID, TeamName: team.Name, Progress: *progress}, nil
}

// UserProgress sums a user's rowing activities and places the total on their team's route.
func (s *Service) UserProgress(ctx context.Context, userID uint) (*UserProgress, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	activities, err := s.activityRepo.ListByUser(ctx, userID, repository.ActivityFilter{Kind: models.ActivityRowing})
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	route := s.defaultRoute
	if user.TeamID != nil {
		team, err := s.teamRepo.GetByID(ctx, *user.TeamID)
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get user team, using default route")
		} else {
			route = team.Route
		}
	}

	progress, err := s.progress(ctx, route, SumRowingDistance(activities))
	if err != nil {
		return nil, err
	}

	return &UserProgress{UserID: user.ID, Username: user.Username, Progress: *progress}, nil
}

// TotalDistance returns the journey length of a route: the configured total for the default
// route, otherwise the distance of its last waypoint.
func (s *Service) TotalDistance(route string, waypoints []models.Waypoint) float64 {
	configured := 0.0
	if route == s.defaultRoute {
		configured = s.totalM
	}
	return JourneyDistance(configured, waypoints)
}

func (s *Service) progress(ctx context.Context, route string, cumulative float64) (*Progress, error) {
	waypoints, err := s.Waypoints(ctx, route)
	if err != nil {
		return nil, err
	}

	total := s.TotalDistance(route, waypoints)

	pct, err := CompletionPercentage(cumulative, total)
	if err != nil {
		return nil, err
	}

	position, err := Interpolate(waypoints, cumulative)
	if err != nil {
		return nil, err
	}

	return &Progress{
		Route:                  route,
		CumulativeDistanceM:    cumulative,
		CumulativeDistanceKm:   units.MetersToKilometers(cumulative),
		TotalJourneyDistanceM:  total,
		TotalJourneyDistanceKm: units.MetersToKilometers(total),
		CompletionPercentage:   pct,
		Position:               position,
	}, nil
}
