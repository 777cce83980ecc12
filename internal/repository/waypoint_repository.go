package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rowquest/rowquest-api/internal/models"
)

// WaypointRepository handles waypoint table operations.
type WaypointRepository struct {
	db *DB
}

// NewWaypointRepository creates a new waypoint repository.
func NewWaypointRepository(db *DB) *WaypointRepository {
	return &WaypointRepository{db: db}
}

// GetByRoute retrieves a route's waypoints in sequence order.
func (r *WaypointRepository) GetByRoute(ctx context.Context, route string) ([]models.Waypoint, error) {
	var waypoints []models.Waypoint
	if err := r.db.WithContext(ctx).Where("route = ?", route).Order("sequence ASC").Find(&waypoints).Error; err != nil {
		return nil, classify("waypoints.get_by_route", fmt.Errorf("failed to get waypoints for route %s: %w", route, err))
	}
	return waypoints, nil
}

// ReplaceRoute swaps a route's whole waypoint set in one transaction.
func (r *WaypointRepository) ReplaceRoute(ctx context.Context, route string, waypoints []models.Waypoint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route = ?", route).Delete(&models.Waypoint{}).Error; err != nil {
			return classify("waypoints.replace", fmt.Errorf("failed to clear route %s: %w", route, err))
		}
		if len(waypoints) == 0 {
			return nil
		}
		rows := make([]models.Waypoint, len(waypoints))
		for i, wp := range waypoints {
			wp.ID = 0
			wp.Route = route
			wp.Sequence = i
			rows[i] = wp
		}
		if err := tx.Create(&rows).Error; err != nil {
			return classify("waypoints.replace", fmt.Errorf("failed to insert waypoints for route %s: %w", route, err))
		}
		return nil
	})
}
