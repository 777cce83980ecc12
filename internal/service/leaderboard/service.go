// Package leaderboard provides leaderboard and ranking services.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	prommetrics "github.com/rowquest/rowquest-api/internal/metrics"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/units"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// Leaderboard periods.
const (
	PeriodDay     = "day"
	PeriodWeek    = "week"
	PeriodMonth   = "month"
	PeriodYear    = "year"
	PeriodAllTime = "all_time"
)

const versionKey = "leaderboard:version"

// LeaderboardRepository interface for the distance aggregates.
type LeaderboardRepository interface {
	UserDistances(ctx context.Context, since *time.Time, teamID *uint, limit int) ([]repository.UserDistance, error)
	TeamDistances(ctx context.Context, since *time.Time, limit int) ([]repository.TeamDistance, error)
}

// BadgeRepository interface for badge operations.
type BadgeRepository interface {
	GetUserBadgeCount(ctx context.Context, userID uint) (int64, error)
	GetUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// ActivityRepository interface for activity operations.
type ActivityRepository interface {
	ListByUser(ctx context.Context, userID uint, filter repository.ActivityFilter) ([]models.Activity, error)
}

// Cache stores rendered leaderboards.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Entry represents a single entry in a user leaderboard.
type Entry struct {
	Rank       int     `json:"rank"`
	UserID     uint    `json:"user_id"`
	Username   string  `json:"username"`
	TeamID     *uint   `json:"team_id"`
	DistanceM  float64 `json:"distance_m"`
	DistanceKm float64 `json:"distance_km"`
	Sessions   int64   `json:"sessions"`
	BadgeCount int     `json:"badge_count"`
}

// TeamEntry represents a single entry in the team leaderboard.
type TeamEntry struct {
	Rank       int     `json:"rank"`
	TeamID     uint    `json:"team_id"`
	Name       string  `json:"name"`
	Route      string  `json:"route"`
	DistanceM  float64 `json:"distance_m"`
	DistanceKm float64 `json:"distance_km"`
	Sessions   int64   `json:"sessions"`
}

// Service handles leaderboard generation and user statistics.
type Service struct {
	leaderboardRepo LeaderboardRepository
	badgeRepo       BadgeRepository
	userRepo        UserRepository
	activityRepo    ActivityRepository
	cache           Cache
	ttl             time.Duration
	log             *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
func NewService(
	leaderboardRepo *repository.LeaderboardRepository,
	badgeRepo *repository.BadgeRepository,
	userRepo *repository.UserRepository,
	activityRepo *repository.ActivityRepository,
	cache Cache,
	ttl time.Duration,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(leaderboardRepo, badgeRepo, userRepo, activityRepo, cache, ttl, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	leaderboardRepo LeaderboardRepository,
	badgeRepo BadgeRepository,
	userRepo UserRepository,
	activityRepo ActivityRepository,
	cache Cache,
	ttl time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		leaderboardRepo: leaderboardRepo,
		badgeRepo:       badgeRepo,
		userRepo:        userRepo,
		activityRepo:    activityRepo,
		cache:           cache,
		ttl:             ttl,
		log:             log,
	}
}

// GetGlobalLeaderboard ranks all users by rowed distance in the period.
func (s *Service) GetGlobalLeaderboard(ctx context.Context, period string, limit int) ([]Entry, error) {
	return s.getUserLeaderboard(ctx, nil, period, limit)
}

// GetTeamMembersLeaderboard ranks one team's members by rowed distance in the period.
func (s *Service) GetTeamMembersLeaderboard(ctx context.Context, teamID uint, period string, limit int) ([]Entry, error) {
	return s.getUserLeaderboard(ctx, &teamID, period, limit)
}

func (s *Service) getUserLeaderboard(ctx context.Context, teamID *uint, period string, limit int) ([]Entry, error) {
	period, since, err := periodStart(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	scope := "global"
	if teamID != nil {
		scope = fmt.Sprintf("team-%d", *teamID)
	}

	var entries []Entry
	key := s.cacheKey(ctx, "users", scope, period, limit)
	if s.cached(ctx, key, &entries) {
		return entries, nil
	}

	rows, err := s.leaderboardRepo.UserDistances(ctx, since, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user distances: %w", err)
	}

	entries = make([]Entry, 0, len(rows))
	for i, row := range rows {
		count, err := s.badgeRepo.GetUserBadgeCount(ctx, row.UserID)
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", row.UserID).Msg("Failed to get badge count")
			count = 0
		}

		entries = append(entries, Entry{
			Rank:       i + 1,
			UserID:     row.UserID,
			Username:   row.Username,
			TeamID:     row.TeamID,
			DistanceM:  row.DistanceM,
			DistanceKm: units.MetersToKilometers(row.DistanceM),
			Sessions:   row.Sessions,
			BadgeCount: int(count),
		})
	}

	s.store(ctx, key, entries)
	return entries, nil
}

// GetTeamLeaderboard ranks teams by rowed distance in the period.
func (s *Service) GetTeamLeaderboard(ctx context.Context, period string, limit int) ([]TeamEntry, error) {
	period, since, err := periodStart(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	var entries []TeamEntry
	key := s.cacheKey(ctx, "teams", "global", period, limit)
	if s.cached(ctx, key, &entries) {
		return entries, nil
	}

	rows, err := s.leaderboardRepo.TeamDistances(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get team distances: %w", err)
	}

	entries = make([]TeamEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, TeamEntry{
			Rank:       i + 1,
			TeamID:     row.TeamID,
			Name:       row.Name,
			Route:      row.Route,
			DistanceM:  row.DistanceM,
			DistanceKm: units.MetersToKilometers(row.DistanceM),
			Sessions:   row.Sessions,
		})
	}

	s.store(ctx, key, entries)
	return entries, nil
}

// GetUserRank returns the user's global rank by distance in the period, 0 when unranked.
func (s *Service) GetUserRank(ctx context.Context, userID uint, period string) (int, error) {
	entries, err := s.GetGlobalLeaderboard(ctx, period, 0)
	if err != nil {
		return 0, err
	}
	return rankOf(entries, userID), nil
}

// Invalidate drops every cached leaderboard by bumping the key version.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.cache.Incr(ctx, versionKey); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard cache: %w", err)
	}
	return nil
}

func (s *Service) cacheKey(ctx context.Context, kind, scope, period string, limit int) string {
	version := "0"
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, versionKey); err == nil && v != "" {
			version = v
		}
	}
	return fmt.Sprintf("leaderboard:v%s:%s:%s:%s:%d", version, kind, scope, period, limit)
}

func (s *Service) cached(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Leaderboard cache read failed")
		return false
	}
	if raw == "" {
		prommetrics.RecordCacheResult(false)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding malformed cached leaderboard")
		return false
	}

	prommetrics.RecordCacheResult(true)
	return true
}

func (s *Service) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode leaderboard for cache")
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Leaderboard cache write failed")
	}
}

func rankOf(entries []Entry, userID uint) int {
	for _, entry := range entries {
		if entry.UserID == userID {
			return entry.Rank
		}
	}
	return 0
}

// periodStart normalizes the period name and returns the start of its window, nil for all time.
func periodStart(period string, now time.Time) (string, *time.Time, error) {
	var start time.Time

	switch period {
	case PeriodDay:
		start = now.Add(-24 * time.Hour)
	case PeriodWeek:
		start = now.Add(-7 * 24 * time.Hour)
	case PeriodMonth:
		start = now.Add(-30 * 24 * time.Hour)
	case PeriodYear:
		start = now.Add(-365 * 24 * time.Hour)
	case PeriodAllTime, "":
		return PeriodAllTime, nil, nil
	default:
		return "", nil, apperrors.New(apperrors.InvalidInput, "leaderboard.period", fmt.Sprintf("unknown period %q", period))
	}

	return period, &start, nil
}
