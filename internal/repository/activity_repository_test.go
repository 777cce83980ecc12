package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

func rowingActivity(user *models.User, meters float64, at time.Time) *models.Activity {
	return &models.Activity{
		UserID:     user.ID,
		TeamID:     user.TeamID,
		Kind:       models.ActivityRowing,
		DistanceM:  &meters,
		OccurredAt: at,
	}
}

func strengthActivity(user *models.User, strengthType string, reps int, at time.Time) *models.Activity {
	return &models.Activity{
		UserID:       user.ID,
		TeamID:       user.TeamID,
		Kind:         models.ActivityStrength,
		StrengthType: strengthType,
		Repetitions:  &reps,
		OccurredAt:   at,
	}
}

func teamDistance(t *testing.T, db *DB, teamID uint) float64 {
	t.Helper()
	team, err := NewTeamRepository(db).GetByID(context.Background(), teamID)
	require.NoError(t, err)
	return team.TotalDistanceM
}

func TestActivityRepository_CreateAndDeleteAdjustTeamCounter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	team := createTestTeam(t, db, "Harbor")
	alice := createTestUser(t, db, "alice", &team.ID)
	now := time.Now().UTC()

	first := rowingActivity(alice, 1800, now.Add(-time.Hour))
	second := rowingActivity(alice, 1200, now)
	require.NoError(t, repo.CreateWithDistance(ctx, first))
	require.NoError(t, repo.CreateWithDistance(ctx, second))
	require.NoError(t, repo.CreateWithDistance(ctx, strengthActivity(alice, models.StrengthCore, 0, now)))

	assert.Equal(t, 3000.0, teamDistance(t, db, team.ID))

	deleted, err := repo.DeleteWithReversal(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, deleted.Distance())
	assert.Equal(t, 1800.0, teamDistance(t, db, team.ID))

	_, err = repo.GetByID(ctx, second.ID)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))

	_, err = repo.DeleteWithReversal(ctx, second.ID)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
	assert.Equal(t, 1800.0, teamDistance(t, db, team.ID))
}

func TestActivityRepository_CreateRollsBackOnUnknownTeam(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice", nil)
	missing := uint(404)
	activity := rowingActivity(alice, 500, time.Now())
	activity.TeamID = &missing

	err := repo.CreateWithDistance(ctx, activity)
	require.Error(t, err)

	activities, err := repo.ListByUser(ctx, alice.ID, ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, activities, "activity insert must roll back with the counter update")
}

func TestActivityRepository_Queries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	team := createTestTeam(t, db, "Harbor")
	alice := createTestUser(t, db, "alice", &team.ID)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateWithDistance(ctx, rowingActivity(alice, 5000, base)))
	require.NoError(t, repo.CreateWithDistance(ctx, rowingActivity(alice, 4000, base.AddDate(0, 0, 2))))
	require.NoError(t, repo.CreateWithDistance(ctx, strengthActivity(alice, models.StrengthKettlebell, 150, base.AddDate(0, 0, 1))))
	require.NoError(t, repo.CreateWithDistance(ctx, strengthActivity(alice, models.StrengthKettlebell, 200, base.AddDate(0, 0, 3))))
	require.NoError(t, repo.CreateWithDistance(ctx, strengthActivity(alice, models.StrengthCore, 0, base.AddDate(0, 0, 4))))

	all, err := repo.ListByUser(ctx, alice.ID, ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].OccurredAt.After(all[4].OccurredAt), "activities are ordered most recent first")

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 3)
	ranged, err := repo.ListByUser(ctx, alice.ID, ActivityFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	rowing, err := repo.ListByUser(ctx, alice.ID, ActivityFilter{Kind: models.ActivityRowing})
	require.NoError(t, err)
	assert.Len(t, rowing, 2)

	strength, err := repo.CountStrength(ctx, alice.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), strength)

	core, err := repo.CountStrength(ctx, alice.ID, models.StrengthCore)
	require.NoError(t, err)
	assert.Equal(t, int64(1), core)

	swings, err := repo.SumRepetitions(ctx, alice.ID, models.StrengthKettlebell)
	require.NoError(t, err)
	assert.Equal(t, int64(350), swings)

	total, err := sumTeamDistance(db.DB, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, total)
}

func TestTeamRepository_UpdateTeamDistance(t *testing.T) {
	db := setupTestDB(t)
	teamRepo := NewTeamRepository(db)
	ctx := context.Background()

	team := createTestTeam(t, db, "Harbor")

	require.NoError(t, teamRepo.UpdateTeamDistance(ctx, team.ID, 250))
	require.NoError(t, teamRepo.UpdateTeamDistance(ctx, team.ID, -50))
	assert.Equal(t, 200.0, teamDistance(t, db, team.ID))

	err := teamRepo.UpdateTeamDistance(ctx, 999, 10)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

func TestTeamRepository_ReconcileDistance(t *testing.T) {
	db := setupTestDB(t)
	teamRepo := NewTeamRepository(db)
	activities := NewActivityRepository(db)
	ctx := context.Background()

	team := createTestTeam(t, db, "Harbor")
	alice := createTestUser(t, db, "alice", &team.ID)
	require.NoError(t, activities.CreateWithDistance(ctx, rowingActivity(alice, 1000, time.Now())))
	require.NoError(t, teamRepo.UpdateTeamDistance(ctx, team.ID, 7))

	rec, err := teamRepo.ReconcileDistance(ctx, team.ID, 0.001)
	require.NoError(t, err)
	assert.Equal(t, 1007.0, rec.CounterM)
	assert.Equal(t, 1000.0, rec.ActualM)
	assert.Equal(t, 7.0, rec.DriftM())
	assert.True(t, rec.Corrected)
	assert.Equal(t, 1000.0, teamDistance(t, db, team.ID))

	rec, err = teamRepo.ReconcileDistance(ctx, team.ID, 0.001)
	require.NoError(t, err)
	assert.False(t, rec.Corrected)
	assert.Zero(t, rec.DriftM())

	// Deltas applied after a correction land on the recomputed value.
	require.NoError(t, activities.CreateWithDistance(ctx, rowingActivity(alice, 500, time.Now())))
	assert.Equal(t, 1500.0, teamDistance(t, db, team.ID))

	_, err = teamRepo.ReconcileDistance(ctx, 999, 0.001)
	assert.True(t, apperrors.Is(err, apperrors.NotFound))
}

func TestTeamRepository_ReconcileDistanceWithConcurrentWriters(t *testing.T) {
	db := setupTestDB(t)
	teamRepo := NewTeamRepository(db)
	activities := NewActivityRepository(db)
	ctx := context.Background()

	team := createTestTeam(t, db, "Harbor")
	alice := createTestUser(t, db, "alice", &team.ID)
	require.NoError(t, teamRepo.UpdateTeamDistance(ctx, team.ID, 7))

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- activities.CreateWithDistance(ctx, rowingActivity(alice, 500, time.Now()))
		}()
		go func() {
			defer wg.Done()
			_, err := teamRepo.ReconcileDistance(ctx, team.ID, 0.001)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	actual, err := sumTeamDistance(db.DB, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, actual)
	assert.Equal(t, actual, teamDistance(t, db, team.ID), "no activity delta may be lost to a reconcile")
}

func TestLeaderboardRepository_Distances(t *testing.T) {
	db := setupTestDB(t)
	activities := NewActivityRepository(db)
	repo := NewLeaderboardRepository(db)
	ctx := context.Background()

	harbor := createTestTeam(t, db, "Harbor")
	river := createTestTeam(t, db, "River")
	createTestTeam(t, db, "Idle")
	alice := createTestUser(t, db, "alice", &harbor.ID)
	bob := createTestUser(t, db, "bob", &harbor.ID)
	carol := createTestUser(t, db, "carol", &river.ID)

	now := time.Now().UTC()
	old := now.AddDate(0, -2, 0)
	require.NoError(t, activities.CreateWithDistance(ctx, rowingActivity(alice, 3000, now)))
	require.NoError(t, activities.CreateWithDistance(ctx, rowingActivity(bob, 5000, old)))
	require.NoError(t, activities.CreateWithDistance(ctx, rowingActivity(carol, 4000, now)))
	require.NoError(t, activities.CreateWithDistance(ctx, strengthActivity(carol, models.StrengthCore, 0, now)))

	allTime, err := repo.UserDistances(ctx, nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, allTime, 3)
	assert.Equal(t, "bob", allTime[0].Username)
	assert.Equal(t, int64(1), allTime[2].Sessions)

	since := now.AddDate(0, 0, -7)
	recent, err := repo.UserDistances(ctx, &since, nil, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "carol", recent[0].Username)

	harborOnly, err := repo.UserDistances(ctx, nil, &harbor.ID, 1)
	require.NoError(t, err)
	require.Len(t, harborOnly, 1)
	assert.Equal(t, bob.ID, harborOnly[0].UserID)

	teams, err := repo.TeamDistances(ctx, &since, 0)
	require.NoError(t, err)
	require.Len(t, teams, 3)
	assert.Equal(t, "River", teams[0].Name)
	assert.Equal(t, 4000.0, teams[0].DistanceM)
	assert.Equal(t, "Idle", teams[2].Name)
	assert.Zero(t, teams[2].DistanceM)
}

func TestWaypointRepository_ReplaceRoute(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWaypointRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceRoute(ctx, "atlantic", []models.Waypoint{
		{Name: "Boston", DistanceFromStartM: 0},
		{Name: "Halifax", DistanceFromStartM: 800000},
	}))
	require.NoError(t, repo.ReplaceRoute(ctx, "atlantic", []models.Waypoint{
		{Name: "Boston", DistanceFromStartM: 0},
		{Name: "Halifax", DistanceFromStartM: 800000},
		{Name: "Rotterdam", DistanceFromStartM: 5556000},
	}))

	waypoints, err := repo.GetByRoute(ctx, "atlantic")
	require.NoError(t, err)
	require.Len(t, waypoints, 3)
	assert.Equal(t, "Rotterdam", waypoints[2].Name)
	assert.Equal(t, 2, waypoints[2].Sequence)

	other, err := repo.GetByRoute(ctx, "pacific")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUserRepository_Lookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	team := createTestTeam(t, db, "Harbor")
	alice := createTestUser(t, db, "alice", &team.ID)

	bySubject, err := repo.GetBySubject(ctx, "sub-alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, bySubject.ID)

	_, err = repo.GetBySubject(ctx, "nobody")
	assert.True(t, apperrors.Is(err, apperrors.NotFound))

	require.NoError(t, repo.UpdateAvatar(ctx, alice.ID, "https://cdn.example/avatars/1/a.png"))
	updated, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/avatars/1/a.png", updated.AvatarURL)

	assert.True(t, apperrors.Is(repo.UpdateAvatar(ctx, 999, "x"), apperrors.NotFound))
}

func TestSeedDemoData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, SeedDemoData(ctx, db, "boston-rotterdam", logger.Nop()))
	require.NoError(t, SeedDemoData(ctx, db, "boston-rotterdam", logger.Nop()))

	teams, err := NewTeamRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 1)

	rec, err := NewTeamRepository(db).ReconcileDistance(ctx, teams[0].ID, 0.001)
	require.NoError(t, err)
	assert.Greater(t, rec.ActualM, 0.0)
	assert.False(t, rec.Corrected, "seeded counters match the seeded activities")

	badges, err := NewBadgeRepository(db).GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, badges, len(DefaultBadges))
}
