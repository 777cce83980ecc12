package journey

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/pkg/logger"
	"github.com/rowquest/rowquest-api/test/mocks"
)

func newTestService(totalM float64) *Service {
	teamID := uint(1)
	teams := &mocks.MockTeamRepository{
		GetByIDFunc: func(id uint) (*models.Team, error) {
			if id != teamID {
				return nil, apperrors.New(apperrors.NotFound, "teams.get", "team not found")
			}
			return &models.Team{ID: teamID, Name: "harbor", Route: "atlantic", TotalDistanceM: 2778}, nil
		},
	}
	users := &mocks.MockUserRepository{
		GetByIDFunc: func(id uint) (*models.User, error) {
			switch id {
			case 10:
				return &models.User{ID: 10, Username: "alice", TeamID: &teamID}, nil
			case 20:
				return &models.User{ID: 20, Username: "solo"}, nil
			}
			return nil, apperrors.New(apperrors.NotFound, "users.get", "user not found")
		},
	}
	activities := &mocks.MockActivityRepository{
		ListByUserFunc: func(userID uint, filter repository.ActivityFilter) ([]models.Activity, error) {
			if userID == 10 {
				return []models.Activity{rowing(10, 400), rowing(10, 400)}, nil
			}
			return nil, nil
		},
	}
	waypoints := &mocks.MockWaypointRepository{Routes: map[string][]models.Waypoint{"atlantic": atlanticRoute()}}

	return NewServiceWithInterfaces(waypoints, teams, users, activities, "atlantic", totalM, logger.Nop())
}

func TestService_Waypoints(t *testing.T) {
	s := newTestService(0)

	waypoints, err := s.Waypoints(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, waypoints, 3)

	_, err = s.Waypoints(context.Background(), "pacific")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

func TestService_Waypoints_InvalidRoute(t *testing.T) {
	s := newTestService(0)
	s.waypointRepo = &mocks.MockWaypointRepository{Routes: map[string][]models.Waypoint{
		"atlantic": {
			{Name: "Boston", DistanceFromStartM: 0},
			{Name: "Rotterdam", DistanceFromStartM: 0},
		},
	}}

	_, err := s.Waypoints(context.Background(), "atlantic")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ConfigurationInvalid))
}

func TestService_Waypoints_RepositoryError(t *testing.T) {
	s := newTestService(0)
	s.waypointRepo = &mocks.MockWaypointRepository{Err: apperrors.Remote("waypoints.list", errors.New("timeout"))}

	_, err := s.Waypoints(context.Background(), "atlantic")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.RemoteCallFailed))
}

func TestService_TeamProgress(t *testing.T) {
	s := newTestService(0)

	progress, err := s.TeamProgress(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "harbor", progress.TeamName)
	assert.Equal(t, "atlantic", progress.Route)
	assert.Equal(t, 2778.0, progress.CumulativeDistanceM)
	assert.Equal(t, 2.778, progress.CumulativeDistanceKm)
	assert.Equal(t, 5556.0, progress.TotalJourneyDistanceM)
	assert.Equal(t, 50, progress.CompletionPercentage)
	require.NotNil(t, progress.Position)
	assert.Equal(t, "Halifax", progress.Position.Current.Name)
	assert.Equal(t, "Rotterdam", progress.Position.Next.Name)
}

func TestService_TeamProgress_ConfiguredTotal(t *testing.T) {
	s := newTestService(27780)

	progress, err := s.TeamProgress(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 27780.0, progress.TotalJourneyDistanceM)
	assert.Equal(t, 10, progress.CompletionPercentage)
}

func TestService_TeamProgress_UnknownTeam(t *testing.T) {
	s := newTestService(0)

	_, err := s.TeamProgress(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

func TestService_UserProgress(t *testing.T) {
	s := newTestService(0)

	progress, err := s.UserProgress(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, "alice", progress.Username)
	assert.Equal(t, 800.0, progress.CumulativeDistanceM)
	assert.Equal(t, 14, progress.CompletionPercentage)
	assert.Equal(t, "Halifax", progress.Position.Current.Name)
}

func TestService_UserProgress_NoTeamUsesDefaultRoute(t *testing.T) {
	s := newTestService(0)

	progress, err := s.UserProgress(context.Background(), 20)
	require.NoError(t, err)

	assert.Equal(t, "atlantic", progress.Route)
	assert.Zero(t, progress.CumulativeDistanceM)
	assert.Zero(t, progress.CompletionPercentage)
	assert.Equal(t, "Boston", progress.Position.Current.Name)
}

func TestService_UserProgress_UnknownUser(t *testing.T) {
	s := newTestService(0)

	_, err := s.UserProgress(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

func TestService_TotalDistance(t *testing.T) {
	s := newTestService(9000)

	assert.Equal(t, 9000.0, s.TotalDistance("atlantic", atlanticRoute()))
	assert.Equal(t, 5556.0, s.TotalDistance("other", atlanticRoute()))
	assert.Zero(t, s.TotalDistance("other", nil))
}
