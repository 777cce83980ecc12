// Package api wires the HTTP handlers into a gin engine.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rowquest/rowquest-api/internal/api/dashboard"
	"github.com/rowquest/rowquest-api/internal/api/middleware"
	"github.com/rowquest/rowquest-api/internal/api/tracking"
	"github.com/rowquest/rowquest-api/internal/config"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// HealthChecker reports the health of a dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps holds everything the router needs.
type Deps struct {
	Config    *config.Config
	Dashboard *dashboard.Handler
	Tracking  *tracking.Handler
	Users     middleware.UserResolver
	Checks    map[string]HealthChecker
	Log       *logger.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(deps.Log), middleware.Recovery(deps.Log))

	router.GET("/health", healthHandler(deps.Checks))
	if deps.Config.Metrics.Enabled {
		router.GET(deps.Config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Authenticate(&deps.Config.Auth, deps.Users, deps.Log))

	limited := []gin.HandlerFunc{}
	if deps.Config.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(deps.Config.RateLimit.RequestsPerMinute, deps.Config.RateLimit.Burst)
		limited = append(limited, middleware.RateLimit(rl))
	}

	// Journey
	v1.GET("/teams/:id/progress", deps.Dashboard.GetTeamProgress)
	v1.GET("/users/:id/progress", deps.Dashboard.GetUserProgress)
	v1.GET("/routes/:route/waypoints", deps.Dashboard.GetWaypoints)

	// Activities
	v1.POST("/activities", append(limited, deps.Tracking.LogActivity)...)
	v1.DELETE("/activities/:id", deps.Tracking.DeleteActivity)
	v1.GET("/users/:id/activities", deps.Tracking.ListUserActivities)

	// Leaderboards and stats
	v1.GET("/leaderboard", deps.Dashboard.GetGlobalLeaderboard)
	v1.GET("/leaderboard/teams", deps.Dashboard.GetTeamLeaderboard)
	v1.GET("/leaderboard/teams/:id", deps.Dashboard.GetTeamMembersLeaderboard)
	v1.GET("/users/:id/stats", deps.Dashboard.GetUserStats)

	// Badges
	v1.GET("/users/:id/badges", deps.Dashboard.GetUserBadges)
	v1.GET("/badges", deps.Dashboard.GetBadgeCatalog)
	v1.GET("/badges/:id", deps.Dashboard.GetBadgeByID)
	v1.GET("/badges/:id/holders", deps.Dashboard.GetBadgeHolders)
	v1.POST("/badges", deps.Tracking.CreateBadge)
	v1.DELETE("/badges/:id", deps.Tracking.DeleteBadge)

	// Profile
	v1.POST("/users/:id/avatar", append(limited, deps.Tracking.UploadAvatar)...)

	return router
}

func healthHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":    state,
			"checks":    results,
			"timestamp": time.Now().UTC(),
		})
	}
}
