// Package scheduler runs periodic maintenance jobs: team distance reconciliation and badge sweeps.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rowquest/rowquest-api/internal/config"
	prommetrics "github.com/rowquest/rowquest-api/internal/metrics"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/internal/repository"
	"github.com/rowquest/rowquest-api/internal/service/badges"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// Job names, used as metric labels.
const (
	JobReconcile  = "reconcile_team_distance"
	JobBadgeSweep = "badge_sweep"
)

// driftTolerance is the counter difference below which no correction is written.
const driftTolerance = 0.001

// TeamRepository interface for team counter operations.
type TeamRepository interface {
	List(ctx context.Context) ([]models.Team, error)
	ReconcileDistance(ctx context.Context, teamID uint, tolerance float64) (*repository.DistanceReconciliation, error)
}

// BadgeSweeper awards cumulative badges across all users.
type BadgeSweeper interface {
	EvaluateAll(ctx context.Context) (int, error)
}

// Service schedules background jobs.
type Service struct {
	config       *config.SchedulerConfig
	teamRepo     TeamRepository
	badgeSweeper BadgeSweeper
	log          *logger.Logger
	cron         *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.SchedulerConfig,
	teamRepo *repository.TeamRepository,
	badgeService *badges.Service,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(cfg, teamRepo, badgeService, log)
}

// NewServiceWithInterfaces creates a new scheduler service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	cfg *config.SchedulerConfig,
	teamRepo TeamRepository,
	badgeSweeper BadgeSweeper,
	log *logger.Logger,
) *Service {
	return &Service{
		config:       cfg,
		teamRepo:     teamRepo,
		badgeSweeper: badgeSweeper,
		log:          log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if s.config.ReconcileSchedule != "" {
		if _, err := s.cron.AddFunc(s.config.ReconcileSchedule, func() {
			_, _ = s.RunReconcile(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}
		s.log.Info().Str("schedule", s.config.ReconcileSchedule).Msg("Team distance reconcile job registered")
	}

	if s.config.BadgeSweepSchedule != "" && s.badgeSweeper != nil {
		if _, err := s.cron.AddFunc(s.config.BadgeSweepSchedule, func() {
			_, _ = s.RunBadgeSweep(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register badge sweep job: %w", err)
		}
		s.log.Info().Str("schedule", s.config.BadgeSweepSchedule).Msg("Badge sweep job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Int("jobs", len(entries)).
		Str("timezone", location.String()).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// RunReconcile recomputes every team's distance from its activities and rewrites counters that drifted.
// It returns the number of corrected teams.
func (s *Service) RunReconcile(ctx context.Context) (int, error) {
	start := time.Now()
	s.log.Info().Msg("Running team distance reconcile job")

	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list teams")
		prommetrics.RecordSchedulerJobRun(JobReconcile, "error", time.Since(start))
		return 0, fmt.Errorf("failed to list teams: %w", err)
	}

	corrected := 0
	failed := 0
	for _, team := range teams {
		rec, err := s.teamRepo.ReconcileDistance(ctx, team.ID, driftTolerance)
		if err != nil {
			s.log.Error().Err(err).Uint("team_id", team.ID).Msg("Failed to reconcile team distance")
			failed++
			continue
		}
		if !rec.Corrected {
			prommetrics.SetTeamDistanceDrift(team.Name, rec.DriftM())
			continue
		}

		s.log.Warn().
			Uint("team_id", team.ID).
			Str("team", team.Name).
			Float64("counter_m", rec.CounterM).
			Float64("actual_m", rec.ActualM).
			Msg("Team distance counter drifted, corrected")

		prommetrics.SetTeamDistanceDrift(team.Name, 0)
		corrected++
	}

	status := "success"
	if failed > 0 {
		status = "partial"
	}
	prommetrics.RecordSchedulerJobRun(JobReconcile, status, time.Since(start))

	s.log.Info().
		Int("teams", len(teams)).
		Int("corrected", corrected).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Team distance reconcile job completed")

	return corrected, nil
}

// RunBadgeSweep evaluates cumulative badges for every user.
func (s *Service) RunBadgeSweep(ctx context.Context) (int, error) {
	start := time.Now()
	s.log.Info().Msg("Running badge sweep job")

	awarded, err := s.badgeSweeper.EvaluateAll(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Badge sweep job failed")
		prommetrics.RecordSchedulerJobRun(JobBadgeSweep, "error", time.Since(start))
		return 0, fmt.Errorf("failed to sweep badges: %w", err)
	}

	prommetrics.RecordSchedulerJobRun(JobBadgeSweep, "success", time.Since(start))

	s.log.Info().
		Int("badges_awarded", awarded).
		Dur("duration", time.Since(start)).
		Msg("Badge sweep job completed successfully")

	return awarded, nil
}
