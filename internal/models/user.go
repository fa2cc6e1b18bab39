package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a marketplace account. Authors are linked to addons
// through the addon_users join table.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	Username     string         `gorm:"index" json:"username"`
	PasswordHash string         `gorm:"column:password_hash" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName ensures consistent table naming
func (User) TableName() string {
	return "users"
}
