package models

import (
	"time"
)

// Badge requirement types.
const (
	RequirementRowingDistance   = "rowing_distance"
	RequirementStrengthSessions = "strength_sessions"
	RequirementKettlebellSwings = "kettlebell_swings"
	RequirementCoreWorkouts     = "core_workouts"
	RequirementTeamContribution = "team_contribution"
)

// Badge tiers.
const (
	TierBronze = "bronze"
	TierSilver = "silver"
	TierGold   = "gold"
)

// Badge represents a badge definition. A nil TeamID makes the badge global.
type Badge struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"not null;size:100" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	Icon             string    `gorm:"size:50" json:"icon"`
	RequirementType  string    `gorm:"size:50;not null;index" json:"requirement_type"`
	RequirementValue float64   `gorm:"not null" json:"requirement_value"`
	Tier             string    `gorm:"size:20;not null;default:bronze" json:"tier"`
	TeamID           *uint     `gorm:"index" json:"team_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name for Badge model.
func (Badge) TableName() string {
	return "badges"
}

// IsGlobal reports whether the badge applies to every team.
func (b *Badge) IsGlobal() bool {
	return b.TeamID == nil
}

// AppliesToTeam reports whether a member of teamID can earn the badge.
func (b *Badge) AppliesToTeam(teamID *uint) bool {
	if b.IsGlobal() {
		return true
	}
	return teamID != nil && *teamID == *b.TeamID
}

// ValidRequirementType reports whether t is a known requirement type.
func ValidRequirementType(t string) bool {
	switch t {
	case RequirementRowingDistance, RequirementStrengthSessions, RequirementKettlebellSwings,
		RequirementCoreWorkouts, RequirementTeamContribution:
		return true
	}
	return false
}

// UserBadge represents a badge earned by a user. (user_id, badge_id) is unique.
type UserBadge struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_user_badge" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BadgeID  uint      `gorm:"not null;uniqueIndex:idx_user_badge;index" json:"badge_id"`
	Badge    Badge     `gorm:"foreignKey:BadgeID;constraint:OnDelete:CASCADE" json:"badge,omitempty"`
	EarnedAt time.Time `gorm:"not null" json:"earned_at"`
}

// TableName specifies the table name for UserBadge model.
func (UserBadge) TableName() string {
	return "user_badges"
}
