package journey

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/models"
)

// RouteFile is the on-disk description of a route.
type RouteFile struct {
	Name           string          `yaml:"name" validate:"required"`
	TotalDistanceM float64         `yaml:"total_distance_m" validate:"gte=0"`
	Waypoints      []RouteWaypoint `yaml:"waypoints" validate:"required,min=1,dive"`
}

// RouteWaypoint is one checkpoint in a route file.
type RouteWaypoint struct {
	Name               string  `yaml:"name" validate:"required"`
	DistanceFromStartM float64 `yaml:"distance_from_start_m" validate:"gte=0"`
	Latitude           float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude          float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
}

var validate = validator.New()

// LoadRoute reads and validates a YAML route file.
func LoadRoute(path string) (*RouteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigurationInvalid, "journey.load_route",
			fmt.Errorf("failed to read route file %s: %w", path, err))
	}
	return ParseRoute(data)
}

// ParseRoute decodes and validates route YAML.
func ParseRoute(data []byte) (*RouteFile, error) {
	const op = "journey.parse_route"

	var route RouteFile
	if err := yaml.Unmarshal(data, &route); err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigurationInvalid, op, fmt.Errorf("failed to parse route: %w", err))
	}
	if err := validate.Struct(&route); err != nil {
		return nil, apperrors.Wrap(apperrors.ConfigurationInvalid, op, fmt.Errorf("invalid route: %w", err))
	}
	if err := ValidateWaypoints(route.ToWaypoints()); err != nil {
		return nil, err
	}
	return &route, nil
}

// ToWaypoints converts the file entries to models in route order.
func (r *RouteFile) ToWaypoints() []models.Waypoint {
	waypoints := make([]models.Waypoint, 0, len(r.Waypoints))
	for i, wp := range r.Waypoints {
		waypoints = append(waypoints, models.Waypoint{
			Route:              r.Name,
			Sequence:           i,
			Name:               wp.Name,
			DistanceFromStartM: wp.DistanceFromStartM,
			Latitude:           wp.Latitude,
			Longitude:          wp.Longitude,
		})
	}
	return waypoints
}

// JourneyDistance returns the configured total, falling back to the last waypoint's distance.
func JourneyDistance(configured float64, waypoints []models.Waypoint) float64 {
	if configured > 0 {
		return configured
	}
	if len(waypoints) == 0 {
		return 0
	}
	return waypoints[len(waypoints)-1].DistanceFromStartM
}
