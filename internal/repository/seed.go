package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// SeedDemoData fills an empty database with one team on the given route, two rowers, a starter
// badge catalog and a few weeks of activities. It does nothing when a team already exists.
func SeedDemoData(ctx context.Context, db *DB, route string, log *logger.Logger) error {
	var teams int64
	if err := db.WithContext(ctx).Model(&models.Team{}).Count(&teams).Error; err != nil {
		return classify("seed.count_teams", fmt.Errorf("failed to count teams: %w", err))
	}
	if teams > 0 {
		log.Debug().Int64("teams", teams).Msg("Database already populated, skipping demo seed")
		return nil
	}

	teamRepo := NewTeamRepository(db)
	userRepo := NewUserRepository(db)
	badgeRepo := NewBadgeRepository(db)
	activityRepo := NewActivityRepository(db)

	team := &models.Team{Name: "Harbor Rowers", Route: route}
	if err := teamRepo.Create(ctx, team); err != nil {
		return err
	}

	users := []*models.User{
		{Subject: "demo-alice", Username: "alice", Email: "alice@rowquest.example", TeamID: &team.ID, Role: models.RoleManager},
		{Subject: "demo-bob", Username: "bob", Email: "bob@rowquest.example", TeamID: &team.ID, Role: models.RoleMember},
	}
	for _, u := range users {
		if err := userRepo.Create(ctx, u); err != nil {
			return err
		}
	}

	for i := range DefaultBadges {
		badge := DefaultBadges[i]
		if err := badgeRepo.Create(ctx, &badge); err != nil {
			return err
		}
	}

	start := time.Now().UTC().AddDate(0, 0, -21).Truncate(24 * time.Hour)
	for day := 0; day < 21; day++ {
		for i, u := range users {
			if (day+i)%3 == 2 {
				continue
			}
			activity := demoActivity(u, start.AddDate(0, 0, day).Add(time.Duration(7+i)*time.Hour), day+i)
			if err := activityRepo.CreateWithDistance(ctx, activity); err != nil {
				return err
			}
		}
	}

	log.Info().
		Str("team", team.Name).
		Str("route", route).
		Int("users", len(users)).
		Int("badges", len(DefaultBadges)).
		Msg("Seeded demo data")
	return nil
}

func demoActivity(u *models.User, at time.Time, n int) *models.Activity {
	activity := &models.Activity{UserID: u.ID, TeamID: u.TeamID, OccurredAt: at}

	switch n % 4 {
	case 0, 1:
		distance := float64(4000 + (n%5)*1500)
		minutes := distance / 250
		activity.Kind = models.ActivityRowing
		activity.DistanceM = &distance
		activity.DurationMinutes = &minutes
	case 2:
		reps := 100 + (n%3)*50
		activity.Kind = models.ActivityStrength
		activity.StrengthType = models.StrengthKettlebell
		activity.Repetitions = &reps
	default:
		minutes := 20.0
		activity.Kind = models.ActivityStrength
		activity.StrengthType = models.StrengthCore
		activity.DurationMinutes = &minutes
	}
	return activity
}

// DefaultBadges is the starter badge catalog.
var DefaultBadges = []models.Badge{
	{Name: "First Stroke", Description: "Row 2 km in a single session", Icon: "🚣", RequirementType: models.RequirementRowingDistance, RequirementValue: 2000, Tier: models.TierBronze},
	{Name: "Ten K Session", Description: "Row 10 km in a single session", Icon: "🌊", RequirementType: models.RequirementRowingDistance, RequirementValue: 10000, Tier: models.TierSilver},
	{Name: "Half Marathon Row", Description: "Row 21.1 km in a single session", Icon: "🏅", RequirementType: models.RequirementRowingDistance, RequirementValue: 21097, Tier: models.TierGold},
	{Name: "Strength Regular", Description: "Log 5 strength sessions", Icon: "💪", RequirementType: models.RequirementStrengthSessions, RequirementValue: 5, Tier: models.TierBronze},
	{Name: "Swing Master", Description: "Complete 1000 kettlebell swings", Icon: "🔔", RequirementType: models.RequirementKettlebellSwings, RequirementValue: 1000, Tier: models.TierSilver},
	{Name: "Iron Core", Description: "Finish 10 core workouts", Icon: "🧱", RequirementType: models.RequirementCoreWorkouts, RequirementValue: 10, Tier: models.TierSilver},
	{Name: "Halfway Across", Description: "Your team has rowed half of the Atlantic route", Icon: "🧭", RequirementType: models.RequirementTeamContribution, RequirementValue: 2778000, Tier: models.TierGold},
}
