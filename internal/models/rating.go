package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Rating is a user review of an addon. Ratings are soft-deleted; data
// migrations carry deleted ratings along with live ones.
type Rating struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AddonID   uint           `gorm:"index;not null" json:"addon_id"`
	VersionID *uint          `json:"version_id,omitempty"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	Score     int            `gorm:"not null" json:"score"`
	Body      string         `gorm:"type:text" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName ensures consistent table naming
func (Rating) TableName() string {
	return "ratings"
}

// Validate checks the score range before writes.
func (r *Rating) Validate() error {
	if r.Score < 1 || r.Score > 5 {
		return errors.New("rating score must be between 1 and 5")
	}
	return nil
}

// BeforeCreate runs validation before saving a new rating
func (r *Rating) BeforeCreate(tx *gorm.DB) error {
	return r.Validate()
}
