// Package dashboard provides read-only REST API handlers for the RowQuest dashboard.
// It exposes endpoints for journey progress, waypoints, leaderboards, user statistics and badges.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/service/badges"
	"github.com/rowquest/rowquest-api/internal/service/journey"
	"github.com/rowquest/rowquest-api/internal/service/leaderboard"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// BadgeService interface for badge operations.
type BadgeService interface {
	GetUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
	GetBadgeCatalog(ctx context.Context) ([]models.Badge, error)
	GetBadgeByID(ctx context.Context, badgeID uint) (*models.Badge, error)
	GetBadgeHolders(ctx context.Context, badgeID uint) ([]models.User, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetGlobalLeaderboard(ctx context.Context, period string, limit int) ([]leaderboard.Entry, error)
	GetTeamMembersLeaderboard(ctx context.Context, teamID uint, period string, limit int) ([]leaderboard.Entry, error)
	GetTeamLeaderboard(ctx context.Context, period string, limit int) ([]leaderboard.TeamEntry, error)
	GetUserStats(ctx context.Context, userID uint, period string) (*leaderboard.UserStats, error)
}

// JourneyService interface for journey progress operations.
type JourneyService interface {
	TeamProgress(ctx context.Context, teamID uint) (*journey.TeamProgress, error)
	UserProgress(ctx context.Context, userID uint) (*journey.UserProgress, error)
	Waypoints(ctx context.Context, route string) ([]models.Waypoint, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	badgeService       BadgeService
	leaderboardService LeaderboardService
	journeyService     JourneyService
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(badgeService *badges.Service, leaderboardService *leaderboard.Service, journeyService *journey.Service, log *logger.Logger) *Handler {
	return NewHandlerWithInterfaces(badgeService, leaderboardService, journeyService, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(badgeService BadgeService, leaderboardService LeaderboardService, journeyService JourneyService, log *logger.Logger) *Handler {
	return &Handler{
		badgeService:       badgeService,
		leaderboardService: leaderboardService,
		journeyService:     journeyService,
		log:                log,
	}
}

// GetTeamProgress returns a team's position along its route.
// GET /api/v1/teams/:id/progress.
func (h *Handler) GetTeamProgress(c *gin.Context) {
	teamID, err := parseID(c, "team")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	progress, err := h.journeyService.TeamProgress(c.Request.Context(), teamID)
	if err != nil {
		h.log.Error().Err(err).Uint("team_id", teamID).Msg("Failed to get team progress")
		h.serviceError(c, err, "Failed to retrieve team progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"progress":     progress,
		"generated_at": time.Now().UTC(),
	})
}

// GetUserProgress returns a user's lifetime distance mapped onto their team's route.
// GET /api/v1/users/:id/progress.
func (h *Handler) GetUserProgress(c *gin.Context) {
	userID, err := parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	progress, err := h.journeyService.UserProgress(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user progress")
		h.serviceError(c, err, "Failed to retrieve user progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"progress":     progress,
		"generated_at": time.Now().UTC(),
	})
}

// GetWaypoints returns the ordered waypoint table of a route.
// GET /api/v1/routes/:route/waypoints.
func (h *Handler) GetWaypoints(c *gin.Context) {
	route := c.Param("route")

	waypoints, err := h.journeyService.Waypoints(c.Request.Context(), route)
	if err != nil {
		h.log.Error().Err(err).Str("route", route).Msg("Failed to get waypoints")
		h.serviceError(c, err, "Failed to retrieve waypoints")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"route":           route,
		"waypoints":       waypoints,
		"total_waypoints": len(waypoints),
		"generated_at":    time.Now().UTC(),
	})
}

// GetGlobalLeaderboard returns the user distance leaderboard.
// GET /api/v1/leaderboard?period=month&limit=10.
func (h *Handler) GetGlobalLeaderboard(c *gin.Context) {
	period := c.DefaultQuery("period", leaderboard.PeriodAllTime)
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetGlobalLeaderboard(c.Request.Context(), period, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get global leaderboard")
		h.serviceError(c, err, "Failed to retrieve leaderboard")
		return
	}

	h.log.Debug().
		Str("period", period).
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved global leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"period":        period,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetTeamLeaderboard returns the team distance leaderboard.
// GET /api/v1/leaderboard/teams?period=month&limit=10.
func (h *Handler) GetTeamLeaderboard(c *gin.Context) {
	period := c.DefaultQuery("period", leaderboard.PeriodAllTime)
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetTeamLeaderboard(c.Request.Context(), period, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get team leaderboard")
		h.serviceError(c, err, "Failed to retrieve team leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"period":        period,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetTeamMembersLeaderboard returns the leaderboard for the members of one team.
// GET /api/v1/leaderboard/teams/:id?period=month&limit=10.
func (h *Handler) GetTeamMembersLeaderboard(c *gin.Context) {
	teamID, err := parseID(c, "team")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	period := c.DefaultQuery("period", leaderboard.PeriodAllTime)
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetTeamMembersLeaderboard(c.Request.Context(), teamID, period, limit)
	if err != nil {
		h.log.Error().Err(err).Uint("team_id", teamID).Msg("Failed to get team members leaderboard")
		h.serviceError(c, err, "Failed to retrieve team leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"team_id":       teamID,
		"leaderboard":   entries,
		"period":        period,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetUserStats returns statistics for a specific user.
// GET /api/v1/users/:id/stats?period=month.
func (h *Handler) GetUserStats(c *gin.Context) {
	userID, err := parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	period := c.DefaultQuery("period", leaderboard.PeriodAllTime)
	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.leaderboardService.GetUserStats(c.Request.Context(), userID, period)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user stats")
		h.serviceError(c, err, "Failed to retrieve user statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetUserBadges returns badges earned by a specific user.
// GET /api/v1/users/:id/badges.
func (h *Handler) GetUserBadges(c *gin.Context) {
	userID, err := parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userBadges, err := h.badgeService.GetUserBadges(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user badges")
		h.serviceError(c, err, "Failed to retrieve user badges")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"badges":       userBadges,
		"total_badges": len(userBadges),
		"generated_at": time.Now().UTC(),
	})
}

// GetBadgeCatalog returns all defined badges.
// GET /api/v1/badges.
func (h *Handler) GetBadgeCatalog(c *gin.Context) {
	catalogBadges, err := h.badgeService.GetBadgeCatalog(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get badge catalog")
		h.serviceError(c, err, "Failed to retrieve badge catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badges":       catalogBadges,
		"total_badges": len(catalogBadges),
		"generated_at": time.Now().UTC(),
	})
}

// GetBadgeByID returns details for a specific badge.
// GET /api/v1/badges/:id.
func (h *Handler) GetBadgeByID(c *gin.Context) {
	badgeID, err := parseID(c, "badge")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	badge, err := h.badgeService.GetBadgeByID(c.Request.Context(), badgeID)
	if err != nil {
		h.log.Error().Err(err).Uint("badge_id", badgeID).Msg("Failed to get badge details")
		h.serviceError(c, err, "Failed to retrieve badge")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badge":        badge,
		"generated_at": time.Now().UTC(),
	})
}

// GetBadgeHolders returns users who have earned a specific badge.
// GET /api/v1/badges/:id/holders?limit=50.
func (h *Handler) GetBadgeHolders(c *gin.Context) {
	badgeID, err := parseID(c, "badge")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := h.parseLimit(c, 50)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	holders, err := h.badgeService.GetBadgeHolders(c.Request.Context(), badgeID)
	if err != nil {
		h.log.Error().Err(err).Uint("badge_id", badgeID).Msg("Failed to get badge holders")
		h.serviceError(c, err, "Failed to retrieve badge holders")
		return
	}

	totalHolders := len(holders)
	if limit > 0 && len(holders) > limit {
		holders = holders[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"badge_id":      badgeID,
		"holders":       holders,
		"total_holders": totalHolders,
		"limited_to":    len(holders),
		"generated_at":  time.Now().UTC(),
	})
}

// Helper functions

// parseID extracts and validates a numeric ID from the :id URL parameter.
func parseID(c *gin.Context, what string) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}

	return limit, nil
}

// validatePeriod validates the period parameter.
func (h *Handler) validatePeriod(period string) error {
	validPeriods := map[string]bool{
		leaderboard.PeriodDay:     true,
		leaderboard.PeriodWeek:    true,
		leaderboard.PeriodMonth:   true,
		leaderboard.PeriodYear:    true,
		leaderboard.PeriodAllTime: true,
	}

	if !validPeriods[period] {
		return fmt.Errorf("invalid period: %s (valid: day, week, month, year, all_time)", period)
	}
	return nil
}

// serviceError maps a service error onto its status code. Client errors keep their message;
// server errors get the generic fallback.
func (h *Handler) serviceError(c *gin.Context, err error, fallback string) {
	status := apperrors.ToStatusCode(apperrors.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.errorResponse(c, status, fallback)
		return
	}
	h.errorResponse(c, status, err.Error())
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
