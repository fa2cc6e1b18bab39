package models

import (
	"time"
)

// UpdateCount is a per-day aggregated update-ping counter for an addon.
type UpdateCount struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	AddonID uint      `gorm:"uniqueIndex:idx_update_counts_addon_date;not null" json:"addon_id"`
	Date    time.Time `gorm:"uniqueIndex:idx_update_counts_addon_date;not null" json:"date"`
	Count   int64     `gorm:"not null" json:"count"`
}

// TableName ensures consistent table naming
func (UpdateCount) TableName() string {
	return "update_counts"
}

// ThemeUpdateCount is the legacy-theme counterpart of UpdateCount. Rows
// are copied, never moved, when a theme is migrated.
type ThemeUpdateCount struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	AddonID uint      `gorm:"uniqueIndex:idx_theme_update_counts_addon_date;not null" json:"addon_id"`
	Date    time.Time `gorm:"uniqueIndex:idx_theme_update_counts_addon_date;not null" json:"date"`
	Count   int64     `gorm:"not null" json:"count"`
}

// TableName ensures consistent table naming
func (ThemeUpdateCount) TableName() string {
	return "theme_update_counts"
}

// MigratedTheme records the one-to-one mapping from a migrated legacy
// theme to the static theme that replaced it. Written once, immutable.
type MigratedTheme struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	LegacyAddonID      uint      `gorm:"uniqueIndex;not null" json:"legacy_addon_id"`
	StaticThemeAddonID uint      `gorm:"uniqueIndex;not null" json:"static_theme_addon_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName ensures consistent table naming
func (MigratedTheme) TableName() string {
	return "migrated_themes"
}
