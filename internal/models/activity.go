package models

import (
	"time"
)

// Activity kinds.
const (
	ActivityRowing   = "rowing"
	ActivityStrength = "strength"
)

// Strength activity subtypes.
const (
	StrengthGeneral    = "general"
	StrengthKettlebell = "kettlebell"
	StrengthCore       = "core"
)

// Activity is a logged workout. DistanceM is set only for rowing activities.
type Activity struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	User            *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TeamID          *uint     `gorm:"index" json:"team_id"`
	Kind            string    `gorm:"size:20;not null;index" json:"kind"`
	DistanceM       *float64  `json:"distance_m,omitempty"`
	DurationMinutes *float64  `json:"duration_minutes,omitempty"`
	StrengthType    string    `gorm:"size:20" json:"strength_type,omitempty"`
	Repetitions     *int      `json:"repetitions,omitempty"`
	OccurredAt      time.Time `gorm:"not null;index" json:"occurred_at"`
	Notes           string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for Activity model.
func (Activity) TableName() string {
	return "activities"
}

// IsRowing reports whether the activity contributes distance.
func (a *Activity) IsRowing() bool {
	return a.Kind == ActivityRowing
}

// Distance returns the rowed distance in meters, zero when absent.
func (a *Activity) Distance() float64 {
	if a.DistanceM == nil {
		return 0
	}
	return *a.DistanceM
}
