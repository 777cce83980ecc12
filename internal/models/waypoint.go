package models

// Waypoint is a named checkpoint on a route with its cumulative distance from the start.
type Waypoint struct {
	ID                 uint    `gorm:"primaryKey" json:"id"`
	Route              string  `gorm:"size:100;not null;uniqueIndex:idx_waypoint_route_seq" json:"route"`
	Sequence           int     `gorm:"not null;uniqueIndex:idx_waypoint_route_seq" json:"sequence"`
	Name               string  `gorm:"size:100;not null" json:"name"`
	DistanceFromStartM float64 `gorm:"not null" json:"distance_from_start_m"`
	Latitude           float64 `gorm:"not null" json:"latitude"`
	Longitude          float64 `gorm:"not null" json:"longitude"`
}

// TableName specifies the table name for Waypoint model.
func (Waypoint) TableName() string {
	return "waypoints"
}
