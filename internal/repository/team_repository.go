package repository

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rowquest/rowquest-api/internal/models"
)

// TeamRepository handles team-related database operations.
type TeamRepository struct {
	db *DB
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// Create creates a new team.
func (r *TeamRepository) Create(ctx context.Context, team *models.Team) error {
	if err := r.db.WithContext(ctx).Create(team).Error; err != nil {
		return classify("teams.create", fmt.Errorf("failed to create team: %w", err))
	}
	return nil
}

// GetByID retrieves a team by ID.
func (r *TeamRepository) GetByID(ctx context.Context, id uint) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).First(&team, id).Error; err != nil {
		return nil, classify("teams.get_by_id", fmt.Errorf("failed to get team by id %d: %w", id, err))
	}
	return &team, nil
}

// List retrieves all teams ordered by name.
func (r *TeamRepository) List(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&teams).Error; err != nil {
		return nil, classify("teams.list", fmt.Errorf("failed to list teams: %w", err))
	}
	return teams, nil
}

// UpdateTeamDistance adds deltaM (negative to reverse) to the team's distance counter in a single
// statement, so concurrent writers never lose an update.
func (r *TeamRepository) UpdateTeamDistance(ctx context.Context, teamID uint, deltaM float64) error {
	result := r.db.WithContext(ctx).Model(&models.Team{}).
		Where("id = ?", teamID).
		Update("total_distance_m", gorm.Expr("total_distance_m + ?", deltaM))
	if result.Error != nil {
		return classify("teams.update_distance", fmt.Errorf("failed to update team distance: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return classify("teams.update_distance", fmt.Errorf("failed to update distance of team %d: %w", teamID, errNotFound))
	}
	return nil
}

// DistanceReconciliation is the outcome of recomputing one team's counter.
type DistanceReconciliation struct {
	CounterM  float64
	ActualM   float64
	Corrected bool
}

// DriftM is how far the counter was ahead of (positive) or behind the activity sum.
func (d *DistanceReconciliation) DriftM() float64 {
	return d.CounterM - d.ActualM
}

// ReconcileDistance recomputes the team's counter from its rowing activities and overwrites it when
// the two differ by at least tolerance. The team row is locked before the sum is taken, so an
// activity insert or delete either commits before the sum or applies its delta after the overwrite.
func (r *TeamRepository) ReconcileDistance(ctx context.Context, teamID uint, tolerance float64) (*DistanceReconciliation, error) {
	var result DistanceReconciliation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&team, teamID).Error; err != nil {
			return classify("teams.reconcile", fmt.Errorf("failed to lock team %d: %w", teamID, err))
		}

		actual, err := sumTeamDistance(tx, teamID)
		if err != nil {
			return err
		}
		result.CounterM = team.TotalDistanceM
		result.ActualM = actual

		if math.Abs(result.DriftM()) < tolerance {
			return nil
		}
		if err := tx.Model(&models.Team{}).Where("id = ?", teamID).Update("total_distance_m", actual).Error; err != nil {
			return classify("teams.reconcile", fmt.Errorf("failed to set distance of team %d: %w", teamID, err))
		}
		result.Corrected = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
