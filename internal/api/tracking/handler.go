// Package tracking provides REST API handlers that change state: logging and deleting activities,
// managing badge definitions and uploading avatars.
package tracking

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rowquest/rowquest-api/internal/api/middleware"
	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/service/activity"
	"github.com/rowquest/rowquest-api/internal/service/badges"
	"github.com/rowquest/rowquest-api/internal/service/profile"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// ActivityService interface for activity operations.
type ActivityService interface {
	LogActivity(ctx context.Context, actor *models.User, input activity.LogActivityInput) (*activity.LogResult, error)
	DeleteActivity(ctx context.Context, actor *models.User, id uint) (*models.Activity, error)
	ListUserActivities(ctx context.Context, userID uint, filter repository.ActivityFilter) ([]models.Activity, error)
}

// BadgeAdminService interface for badge definition management.
type BadgeAdminService interface {
	CreateBadge(ctx context.Context, actor *models.User, input badges.CreateBadgeInput) (*models.Badge, error)
	DeleteBadge(ctx context.Context, actor *models.User, badgeID uint) error
}

// ProfileService interface for avatar uploads.
type ProfileService interface {
	UploadAvatar(ctx context.Context, actor *models.User, userID uint, upload profile.AvatarUpload) (*models.User, error)
	MaxBytes() int64
}

// Handler handles state-changing API requests.
type Handler struct {
	activityService ActivityService
	badgeService    BadgeAdminService
	profileService  ProfileService
	log             *logger.Logger
}

// NewHandler creates a new tracking handler. profileService may be nil when uploads are disabled.
func NewHandler(activityService *activity.Service, badgeService *badges.Service, profileService *profile.Service, log *logger.Logger) *Handler {
	h := &Handler{
		activityService: activityService,
		badgeService:    badgeService,
		log:             log,
	}
	if profileService != nil {
		h.profileService = profileService
	}
	return h
}

// NewHandlerWithInterfaces creates a new tracking handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(activityService ActivityService, badgeService BadgeAdminService, profileService ProfileService, log *logger.Logger) *Handler {
	return &Handler{
		activityService: activityService,
		badgeService:    badgeService,
		profileService:  profileService,
		log:             log,
	}
}

// LogActivity records a workout for the caller.
// POST /api/v1/activities.
func (h *Handler) LogActivity(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var input activity.LogActivityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	result, err := h.activityService.LogActivity(c.Request.Context(), actor, input)
	if err != nil {
		h.log.Warn().Err(err).Uint("user_id", actor.ID).Msg("Failed to log activity")
		h.serviceError(c, err, "Failed to log activity")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"activity":     result.Activity,
		"new_badges":   result.NewBadges,
		"generated_at": time.Now().UTC(),
	})
}

// DeleteActivity removes an activity and reverses its distance.
// DELETE /api/v1/activities/:id.
func (h *Handler) DeleteActivity(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id, err := parseID(c, "activity")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.activityService.DeleteActivity(c.Request.Context(), actor, id)
	if err != nil {
		h.log.Warn().Err(err).Uint("activity_id", id).Msg("Failed to delete activity")
		h.serviceError(c, err, "Failed to delete activity")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":      deleted,
		"generated_at": time.Now().UTC(),
	})
}

// ListUserActivities lists a user's activities.
// GET /api/v1/users/:id/activities?from=2026-01-01T00:00:00Z&to=...&kind=rowing&limit=50.
func (h *Handler) ListUserActivities(c *gin.Context) {
	userID, err := parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseActivityFilter(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	activities, err := h.activityService.ListUserActivities(c.Request.Context(), userID, filter)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list activities")
		h.serviceError(c, err, "Failed to retrieve activities")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":          userID,
		"activities":       activities,
		"total_activities": len(activities),
		"generated_at":     time.Now().UTC(),
	})
}

// CreateBadge defines a new badge.
// POST /api/v1/badges.
func (h *Handler) CreateBadge(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var input badges.CreateBadgeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	badge, err := h.badgeService.CreateBadge(c.Request.Context(), actor, input)
	if err != nil {
		h.log.Warn().Err(err).Uint("user_id", actor.ID).Msg("Failed to create badge")
		h.serviceError(c, err, "Failed to create badge")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"badge":        badge,
		"generated_at": time.Now().UTC(),
	})
}

// DeleteBadge removes a badge definition and its awards.
// DELETE /api/v1/badges/:id.
func (h *Handler) DeleteBadge(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	id, err := parseID(c, "badge")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.badgeService.DeleteBadge(c.Request.Context(), actor, id); err != nil {
		h.log.Warn().Err(err).Uint("badge_id", id).Msg("Failed to delete badge")
		h.serviceError(c, err, "Failed to delete badge")
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadAvatar stores a new avatar image for a user.
// POST /api/v1/users/:id/avatar (multipart form, field "avatar").
func (h *Handler) UploadAvatar(c *gin.Context) {
	if h.profileService == nil {
		h.errorResponse(c, http.StatusServiceUnavailable, "avatar uploads are disabled")
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	userID, err := parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.profileService.MaxBytes()+(1<<20))
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "avatar file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "unreadable avatar file")
		return
	}
	defer file.Close()

	user, err := h.profileService.UploadAvatar(c.Request.Context(), actor, userID, profile.AvatarUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		h.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to upload avatar")
		h.serviceError(c, err, "Failed to upload avatar")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      user.ID,
		"avatar_url":   user.AvatarURL,
		"generated_at": time.Now().UTC(),
	})
}

// Helper functions

func (h *Handler) actor(c *gin.Context) (*models.User, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return actor, true
}

func parseID(c *gin.Context, what string) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, idStr)
	}
	return uint(id), nil
}

func parseActivityFilter(c *gin.Context) (repository.ActivityFilter, error) {
	filter := repository.ActivityFilter{
		Kind:         c.Query("kind"),
		StrengthType: c.Query("strength_type"),
	}

	for _, p := range []struct {
		name string
		dest **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid %s parameter: %s (expected RFC3339)", p.name, raw)
		}
		ts = ts.UTC()
		*p.dest = &ts
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			return filter, fmt.Errorf("invalid limit parameter: %s", raw)
		}
		filter.Limit = limit
	}

	return filter, nil
}

func (h *Handler) serviceError(c *gin.Context, err error, fallback string) {
	status := apperrors.ToStatusCode(apperrors.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.errorResponse(c, status, fallback)
		return
	}
	h.errorResponse(c, status, err.Error())
}

func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
