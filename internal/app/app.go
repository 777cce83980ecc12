// Package app assembles repositories, services and HTTP handlers into a runnable application.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/rowquest/rowquest-api/internal/api"
	"github.com/rowquest/rowquest-api/internal/api/dashboard"
	"github.com/rowquest/rowquest-api/internal/api/tracking"
	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/config"
	"github.com/rowquest/rowquest-api/internal/notify"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/service/activity"
	"github.com/rowquest/rowquest-api/internal/service/badges"
	"github.com/rowquest/rowquest-api/internal/service/journey"
	"github.com/rowquest/rowquest-api/internal/service/leaderboard"
	"github.com/rowquest/rowquest-api/internal/service/profile"
	"github.com/rowquest/rowquest-api/internal/service/scheduler"
	"github.com/rowquest/rowquest-api/internal/storage"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// Cache is the leaderboard cache plus a health check.
type Cache interface {
	leaderboard.Cache
	Health(ctx context.Context) error
}

// App holds the assembled application.
type App struct {
	Router      *gin.Engine
	Scheduler   *scheduler.Service
	Journey     *journey.Service
	Badges      *badges.Service
	Leaderboard *leaderboard.Service
	Activity    *activity.Service
}

// New loads the route, prepares the database and wires every service. cache and uploader may be nil.
func New(ctx context.Context, cfg *config.Config, db *repository.DB, cache Cache, uploader *storage.Uploader, log *logger.Logger) (*App, error) {
	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	waypointRepo := repository.NewWaypointRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)

	totalM, err := syncRoute(ctx, cfg, waypointRepo, log)
	if err != nil {
		return nil, err
	}

	if cfg.Data.IsMock() && cfg.Data.Seed {
		if err := repository.SeedDemoData(ctx, db, cfg.Journey.Route, log.Component("seed")); err != nil {
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	notifier := notify.NewClient(&cfg.Notifications, log.Component("notify"))

	var lbCache leaderboard.Cache
	if cache != nil {
		lbCache = cache
	}

	journeyService := journey.NewService(waypointRepo, teamRepo, userRepo, activityRepo, cfg.Journey.Route, totalM, log.Component("journey"))
	badgeService := badges.NewService(badgeRepo, activityRepo, teamRepo, userRepo, notifier, log.Component("badges"))
	leaderboardService := leaderboard.NewService(leaderboardRepo, badgeRepo, userRepo, activityRepo, lbCache, cfg.Cache.CacheTTL(), log.Component("leaderboard"))
	activityService := activity.NewService(activityRepo, teamRepo, badgeService, leaderboardService, journeyService, notifier, log.Component("activity"))
	schedulerService := scheduler.NewService(&cfg.Scheduler, teamRepo, badgeService, log.Component("scheduler"))

	var profileService *profile.Service
	if uploader != nil {
		profileService = profile.NewService(userRepo, uploader, cfg.Storage.MaxUploadBytes, log.Component("profile"))
	}

	checks := map[string]api.HealthChecker{"database": db}
	if cache != nil {
		checks["cache"] = cache
	}

	router := api.NewRouter(api.Deps{
		Config:    cfg,
		Dashboard: dashboard.NewHandler(badgeService, leaderboardService, journeyService, log.Component("api")),
		Tracking:  tracking.NewHandler(activityService, badgeService, profileService, log.Component("api")),
		Users:     userRepo,
		Checks:    checks,
		Log:       log.Component("http"),
	})

	return &App{
		Router:      router,
		Scheduler:   schedulerService,
		Journey:     journeyService,
		Badges:      badgeService,
		Leaderboard: leaderboardService,
		Activity:    activityService,
	}, nil
}

// syncRoute loads the configured route file, validates it and stores its waypoints. It returns the
// journey length in meters.
func syncRoute(ctx context.Context, cfg *config.Config, waypoints *repository.WaypointRepository, log *logger.Logger) (float64, error) {
	route, err := journey.LoadRoute(cfg.Journey.RouteFile)
	if err != nil {
		return 0, err
	}
	if route.Name != cfg.Journey.Route {
		return 0, apperrors.New(apperrors.ConfigurationInvalid, "journey.route",
			fmt.Sprintf("route file %s describes %q, configured route is %q", cfg.Journey.RouteFile, route.Name, cfg.Journey.Route))
	}

	configured := cfg.Journey.TotalDistanceM
	if configured == 0 {
		configured = route.TotalDistanceM
	}
	points := route.ToWaypoints()
	totalM := journey.JourneyDistance(configured, points)
	if totalM <= 0 {
		return 0, apperrors.New(apperrors.ConfigurationInvalid, "journey.total", "total journey distance must be positive")
	}
	if last := points[len(points)-1].DistanceFromStartM; totalM < last {
		return 0, apperrors.New(apperrors.ConfigurationInvalid, "journey.total",
			fmt.Sprintf("total journey distance %.0f m is shorter than route %s (%.0f m)", totalM, route.Name, last))
	}

	if err := waypoints.ReplaceRoute(ctx, route.Name, points); err != nil {
		return 0, fmt.Errorf("failed to store route %s: %w", route.Name, err)
	}

	log.Info().
		Str("route", route.Name).
		Int("waypoints", len(points)).
		Float64("total_distance_m", totalM).
		Msg("Route loaded")

	return totalM, nil
}
