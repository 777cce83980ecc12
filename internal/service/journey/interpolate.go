package journey

import (
	"fmt"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
)

// Position is where a cumulative distance lands on a route.
//
// Coordinates are a planar linear interpolation between the surrounding waypoints. They do not
// follow the great circle; that is accurate enough for drawing a marker on a map.
type Position struct {
	Latitude        float64          `json:"latitude"`
	Longitude       float64          `json:"longitude"`
	Current         models.Waypoint  `json:"current_waypoint"`
	Next            *models.Waypoint `json:"next_waypoint,omitempty"`
	SegmentProgress float64          `json:"segment_progress"`
	DistanceToNextM float64          `json:"distance_to_next_m"`
	Complete        bool             `json:"complete"`
}

// ValidateWaypoints checks that the route is non-empty, starts at zero and strictly increases.
func ValidateWaypoints(waypoints []models.Waypoint) error {
	const op = "journey.validate_waypoints"

	if len(waypoints) == 0 {
		return apperrors.New(apperrors.ConfigurationInvalid, op, "waypoint list is empty")
	}
	if waypoints[0].DistanceFromStartM != 0 {
		return apperrors.New(apperrors.ConfigurationInvalid, op,
			fmt.Sprintf("first waypoint %q must start at 0, got %v", waypoints[0].Name, waypoints[0].DistanceFromStartM))
	}
	for i := 1; i < len(waypoints); i++ {
		if waypoints[i].DistanceFromStartM <= waypoints[i-1].DistanceFromStartM {
			return apperrors.New(apperrors.ConfigurationInvalid, op,
				fmt.Sprintf("waypoint %q (%v) does not come after %q (%v)",
					waypoints[i].Name, waypoints[i].DistanceFromStartM,
					waypoints[i-1].Name, waypoints[i-1].DistanceFromStartM))
		}
	}
	return nil
}

// Interpolate maps cumulative meters onto the ordered waypoint list.
func Interpolate(waypoints []models.Waypoint, cumulative float64) (*Position, error) {
	if err := ValidateWaypoints(waypoints); err != nil {
		return nil, err
	}
	if !isFinite(cumulative) {
		return nil, apperrors.New(apperrors.InvalidInput, "journey.interpolate", fmt.Sprintf("cumulative distance %v is not finite", cumulative))
	}

	first := waypoints[0]
	last := waypoints[len(waypoints)-1]

	if len(waypoints) == 1 {
		pos := atWaypoint(first)
		if cumulative >= first.DistanceFromStartM {
			pos.Complete = true
			pos.SegmentProgress = 1
		}
		return pos, nil
	}

	if cumulative >= last.DistanceFromStartM {
		pos := atWaypoint(last)
		pos.Complete = true
		pos.SegmentProgress = 1
		return pos, nil
	}

	if cumulative <= 0 {
		next := waypoints[1]
		pos := atWaypoint(first)
		pos.Next = &next
		pos.DistanceToNextM = next.DistanceFromStartM
		return pos, nil
	}

	i := segmentIndex(waypoints, cumulative)
	from, to := waypoints[i], waypoints[i+1]

	progress := (cumulative - from.DistanceFromStartM) / (to.DistanceFromStartM - from.DistanceFromStartM)
	progress = clamp01(progress)

	return &Position{
		Latitude:        from.Latitude + (to.Latitude-from.Latitude)*progress,
		Longitude:       from.Longitude + (to.Longitude-from.Longitude)*progress,
		Current:         from,
		Next:            &to,
		SegmentProgress: progress,
		DistanceToNextM: to.DistanceFromStartM - cumulative,
	}, nil
}

// segmentIndex returns i such that wp[i] <= d < wp[i+1]. Callers guarantee wp[0] < d < wp[last].
func segmentIndex(waypoints []models.Waypoint, d float64) int {
	lo, hi := 0, len(waypoints)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if waypoints[mid].DistanceFromStartM <= d {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

func atWaypoint(wp models.Waypoint) *Position {
	return &Position{
		Latitude:  wp.Latitude,
		Longitude: wp.Longitude,
		Current:   wp,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
