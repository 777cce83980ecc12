package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/notify"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/pkg/logger"
	"github.com/rowquest/rowquest-api/test/mocks"
)

type mockActivityRepository struct {
	created  []*models.Activity
	stored   map[uint]*models.Activity
	nextID   uint
	err      error
	listed   repository.ActivityFilter
	reversed []uint
}

func newMockActivityRepository() *mockActivityRepository {
	return &mockActivityRepository{stored: map[uint]*models.Activity{}, nextID: 1}
}

func (m *mockActivityRepository) CreateWithDistance(ctx context.Context, activity *models.Activity) error {
	if m.err != nil {
		return m.err
	}
	activity.ID = m.nextID
	m.nextID++
	m.created = append(m.created, activity)
	m.stored[activity.ID] = activity
	return nil
}

func (m *mockActivityRepository) DeleteWithReversal(ctx context.Context, id uint) (*models.Activity, error) {
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.stored[id]
	if !ok {
		return nil, apperrors.New(apperrors.NotFound, "activities.delete", "activity not found")
	}
	delete(m.stored, id)
	m.reversed = append(m.reversed, id)
	return a, nil
}

func (m *mockActivityRepository) GetByID(ctx context.Context, id uint) (*models.Activity, error) {
	a, ok := m.stored[id]
	if !ok {
		return nil, apperrors.New(apperrors.NotFound, "activities.get", "activity not found")
	}
	return a, nil
}

func (m *mockActivityRepository) ListByUser(ctx context.Context, userID uint, filter repository.ActivityFilter) ([]models.Activity, error) {
	m.listed = filter
	var out []models.Activity
	for _, a := range m.stored {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type mockBadgeEvaluator struct {
	earned []models.Badge
	err    error
	calls  int
}

func (m *mockBadgeEvaluator) EvaluateActivity(ctx context.Context, user *models.User, activity *models.Activity) ([]models.Badge, error) {
	m.calls++
	return m.earned, m.err
}

type mockLeaderboardCache struct {
	invalidations int
	err           error
}

func (m *mockLeaderboardCache) Invalidate(ctx context.Context) error {
	m.invalidations++
	return m.err
}

type mockRouteProvider struct {
	waypoints []models.Waypoint
	total     float64
}

func (m *mockRouteProvider) Waypoints(ctx context.Context, route string) ([]models.Waypoint, error) {
	return m.waypoints, nil
}

func (m *mockRouteProvider) TotalDistance(route string, waypoints []models.Waypoint) float64 {
	return m.total
}

type mockNotifier struct {
	events []notify.WaypointReached
}

func (m *mockNotifier) SendWaypointReached(ctx context.Context, e notify.WaypointReached) error {
	m.events = append(m.events, e)
	return nil
}

type fixture struct {
	service     *Service
	activities  *mockActivityRepository
	badges      *mockBadgeEvaluator
	leaderboard *mockLeaderboardCache
	notifier    *mockNotifier
	team        *models.Team
}

func newFixture() *fixture {
	team := &models.Team{ID: 1, Name: "harbor", Route: "boston-rotterdam", TotalDistanceM: 900}
	f := &fixture{
		activities:  newMockActivityRepository(),
		badges:      &mockBadgeEvaluator{},
		leaderboard: &mockLeaderboardCache{},
		notifier:    &mockNotifier{},
		team:        team,
	}
	teams := &mocks.MockTeamRepository{
		GetByIDFunc: func(id uint) (*models.Team, error) {
			if id == team.ID {
				return team, nil
			}
			return nil, apperrors.New(apperrors.NotFound, "teams.get", "team not found")
		},
	}
	routes := &mockRouteProvider{
		waypoints: []models.Waypoint{
			{Sequence: 0, Name: "Boston", DistanceFromStartM: 0},
			{Sequence: 1, Name: "Cape Cod", DistanceFromStartM: 1000},
			{Sequence: 2, Name: "Nantucket", DistanceFromStartM: 2000},
			{Sequence: 3, Name: "Rotterdam", DistanceFromStartM: 4000},
		},
		total: 4000,
	}
	f.service = NewServiceWithInterfaces(f.activities, teams, f.badges, f.leaderboard, routes, f.notifier, logger.Nop())
	return f
}

func teamMember(id uint) *models.User {
	teamID := uint(1)
	return &models.User{ID: id, Username: "alice", TeamID: &teamID, Role: models.RoleMember}
}

func ptr[T any](v T) *T { return &v }

func TestLogActivity_RowingMeters(t *testing.T) {
	f := newFixture()

	result, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:            models.ActivityRowing,
		DistanceM:       ptr(500.0),
		DurationMinutes: ptr(20.0),
	})
	require.NoError(t, err)

	require.Len(t, f.activities.created, 1)
	a := result.Activity
	assert.Equal(t, uint(10), a.UserID)
	require.NotNil(t, a.TeamID)
	assert.Equal(t, uint(1), *a.TeamID)
	assert.Equal(t, 500.0, a.Distance())
	assert.WithinDuration(t, time.Now().UTC(), a.OccurredAt, time.Minute)
	assert.Empty(t, result.NewBadges)
	assert.Equal(t, 1, f.leaderboard.invalidations)
	assert.Equal(t, 1, f.badges.calls)
}

func TestLogActivity_RowingKilometers(t *testing.T) {
	f := newFixture()

	result, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:       models.ActivityRowing,
		DistanceKm: ptr(1.2),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1200.0, result.Activity.Distance(), 1e-9)
}

func TestLogActivity_Strength(t *testing.T) {
	f := newFixture()

	result, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:        models.ActivityStrength,
		Repetitions: ptr(100),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StrengthGeneral, result.Activity.StrengthType)
	assert.Nil(t, result.Activity.DistanceM)
	assert.Zero(t, f.leaderboard.invalidations, "strength work does not move the leaderboard")
	assert.Empty(t, f.notifier.events)
}

func TestLogActivity_InvalidInput(t *testing.T) {
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		input LogActivityInput
	}{
		{"unknown kind", LogActivityInput{Kind: "swimming", DistanceM: ptr(100.0)}},
		{"rowing without distance", LogActivityInput{Kind: models.ActivityRowing}},
		{"rowing with both units", LogActivityInput{Kind: models.ActivityRowing, DistanceM: ptr(100.0), DistanceKm: ptr(0.1)}},
		{"zero distance", LogActivityInput{Kind: models.ActivityRowing, DistanceM: ptr(0.0)}},
		{"negative distance", LogActivityInput{Kind: models.ActivityRowing, DistanceKm: ptr(-1.0)}},
		{"rowing with strength type", LogActivityInput{Kind: models.ActivityRowing, DistanceM: ptr(100.0), StrengthType: models.StrengthCore}},
		{"strength with distance", LogActivityInput{Kind: models.ActivityStrength, DistanceM: ptr(100.0)}},
		{"unknown strength type", LogActivityInput{Kind: models.ActivityStrength, StrengthType: "yoga"}},
		{"negative repetitions", LogActivityInput{Kind: models.ActivityStrength, Repetitions: ptr(-5)}},
		{"occurred in the future", LogActivityInput{Kind: models.ActivityRowing, DistanceM: ptr(100.0), OccurredAt: &future}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.service.LogActivity(context.Background(), teamMember(10), tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.InvalidInput), "got %v", err)
			assert.Empty(t, f.activities.created)
		})
	}
}

func TestLogActivity_SmallClockSkewAccepted(t *testing.T) {
	f := newFixture()
	soon := time.Now().Add(time.Minute)

	_, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:       models.ActivityRowing,
		DistanceM:  ptr(100.0),
		OccurredAt: &soon,
	})
	assert.NoError(t, err)
}

func TestLogActivity_BadgeFailureKeepsActivity(t *testing.T) {
	f := newFixture()
	f.badges.err = errors.New("badge store unavailable")

	result, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(50.0),
	})
	require.NoError(t, err)
	assert.Len(t, f.activities.created, 1)
	assert.Empty(t, result.NewBadges)
}

func TestLogActivity_ReturnsNewBadges(t *testing.T) {
	f := newFixture()
	f.badges.earned = []models.Badge{{ID: 3, Name: "First Strokes"}}

	result, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(50.0),
	})
	require.NoError(t, err)
	require.Len(t, result.NewBadges, 1)
	assert.Equal(t, "First Strokes", result.NewBadges[0].Name)
}

func TestLogActivity_StoreFailure(t *testing.T) {
	f := newFixture()
	f.activities.err = apperrors.Remote("activities.insert", errors.New("connection reset"))

	_, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(50.0),
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.RemoteCallFailed))
	assert.Zero(t, f.badges.calls)
	assert.Zero(t, f.leaderboard.invalidations)
}

func TestLogActivity_CacheFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.leaderboard.err = errors.New("redis down")

	_, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(50.0),
	})
	assert.NoError(t, err)
}

func TestLogActivity_AnnouncesFurthestWaypoint(t *testing.T) {
	f := newFixture()

	// 900 -> 2200 passes Cape Cod and Nantucket; only the furthest is announced.
	_, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(1300.0),
	})
	require.NoError(t, err)

	require.Len(t, f.notifier.events, 1)
	e := f.notifier.events[0]
	assert.Equal(t, "harbor", e.TeamName)
	assert.Equal(t, "Nantucket", e.WaypointName)
	assert.Equal(t, "Rotterdam", e.NextWaypointName)
	assert.Equal(t, 55, e.CompletionPercentage)
}

func TestLogActivity_NoWaypointCrossed(t *testing.T) {
	f := newFixture()

	_, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(50.0),
	})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.events)
}

func TestLogActivity_UserWithoutTeam(t *testing.T) {
	f := newFixture()
	solo := &models.User{ID: 20, Username: "solo", Role: models.RoleMember}

	result, err := f.service.LogActivity(context.Background(), solo, LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(5000.0),
	})
	require.NoError(t, err)
	assert.Nil(t, result.Activity.TeamID)
	assert.Empty(t, f.notifier.events)
	assert.Equal(t, 1, f.leaderboard.invalidations)
}

func TestDeleteActivity(t *testing.T) {
	f := newFixture()
	owner := teamMember(10)
	result, err := f.service.LogActivity(context.Background(), owner, LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(300.0),
	})
	require.NoError(t, err)
	id := result.Activity.ID

	t.Run("other member is forbidden", func(t *testing.T) {
		_, err := f.service.DeleteActivity(context.Background(), teamMember(11), id)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Forbidden))
		assert.Empty(t, f.activities.reversed)
	})

	t.Run("owner deletes", func(t *testing.T) {
		deleted, err := f.service.DeleteActivity(context.Background(), owner, id)
		require.NoError(t, err)
		assert.Equal(t, 300.0, deleted.Distance())
		assert.Equal(t, []uint{id}, f.activities.reversed)
		assert.Equal(t, 2, f.leaderboard.invalidations)
	})

	t.Run("missing activity", func(t *testing.T) {
		_, err := f.service.DeleteActivity(context.Background(), owner, id)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.NotFound))
	})
}

func TestDeleteActivity_AdminMayDeleteAny(t *testing.T) {
	f := newFixture()
	result, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:        models.ActivityStrength,
		Repetitions: ptr(40),
	})
	require.NoError(t, err)

	admin := &models.User{ID: 99, Username: "admin", Role: models.RoleAdmin}
	deleted, err := f.service.DeleteActivity(context.Background(), admin, result.Activity.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(10), deleted.UserID)
	assert.Zero(t, f.leaderboard.invalidations)
}

func TestListUserActivities(t *testing.T) {
	f := newFixture()
	_, err := f.service.LogActivity(context.Background(), teamMember(10), LogActivityInput{
		Kind:      models.ActivityRowing,
		DistanceM: ptr(100.0),
	})
	require.NoError(t, err)

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	list, err := f.service.ListUserActivities(context.Background(), 10, repository.ActivityFilter{
		Kind: models.ActivityRowing,
		From: &from,
		To:   &to,
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, models.ActivityRowing, f.activities.listed.Kind)
}

func TestListUserActivities_InvalidFilter(t *testing.T) {
	f := newFixture()
	now := time.Now()
	earlier := now.Add(-time.Hour)

	_, err := f.service.ListUserActivities(context.Background(), 10, repository.ActivityFilter{Kind: "cycling"})
	assert.True(t, apperrors.Is(err, apperrors.InvalidInput))

	_, err = f.service.ListUserActivities(context.Background(), 10, repository.ActivityFilter{From: &now, To: &earlier})
	assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
}
