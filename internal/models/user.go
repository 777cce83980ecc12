// Package models defines domain models for RowQuest.
package models

import (
	"time"
)

// User roles.
const (
	RoleMember  = "member"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// User represents a rower. Subject is the identity issued by the external auth provider.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Subject   string    `gorm:"uniqueIndex;not null;size:255" json:"-"`
	Username  string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email     string    `gorm:"size:255" json:"email"`
	TeamID    *uint     `gorm:"index" json:"team_id"`
	Team      *Team     `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Role      string    `gorm:"size:50;default:member" json:"role"`
	AvatarURL string    `gorm:"type:text" json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// CanManageBadges reports whether the user may create or delete badge definitions.
func (u *User) CanManageBadges() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

// Team groups users travelling the same route. TotalDistanceM is the incrementally
// maintained sum of its members' rowing distances.
type Team struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Route          string    `gorm:"size:100;not null" json:"route"`
	TotalDistanceM float64   `gorm:"not null;default:0" json:"total_distance_m"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for Team model.
func (Team) TableName() string {
	return "teams"
}
