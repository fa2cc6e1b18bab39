package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Addon represents a listing on the marketplace: an extension, a theme
// (legacy lightweight format), a static theme or a dictionary.
type Addon struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	GUID         *string `gorm:"uniqueIndex" json:"guid,omitempty"`
	Slug         string  `gorm:"uniqueIndex;not null" json:"slug"`
	Type         string  `gorm:"index;not null" json:"type"`
	Status       string  `gorm:"index;not null;default:'incomplete'" json:"status"`
	TargetLocale string  `json:"target_locale,omitempty"`

	// Builtin license identifier carried by legacy themes. Packaged
	// add-ons reference a License row through their version instead.
	LicenseBuiltin *int `json:"license_builtin,omitempty"`

	RequiresSensitiveDataAccess    bool `gorm:"default:false" json:"requires_sensitive_data_access"`
	NeedsSensitiveDataAccessReview bool `gorm:"default:false" json:"needs_sensitive_data_access_review"`

	CurrentVersionID *uint    `json:"current_version_id,omitempty"`
	CurrentVersion   *Version `gorm:"foreignKey:CurrentVersionID" json:"-"`

	// LastUpdated is derived from the approved files of the current
	// version; see tasks.RecomputeLastUpdated.
	LastUpdated *time.Time `json:"last_updated,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Authors    []User     `gorm:"many2many:addon_users" json:"-"`
	Tags       []Tag      `gorm:"many2many:addon_tags" json:"-"`
	Categories []Category `gorm:"many2many:addon_categories" json:"-"`
}

// Valid addon types
const (
	TypeExtension   = "extension"
	TypeTheme       = "theme" // legacy lightweight theme
	TypeStaticTheme = "statictheme"
	TypeDictionary  = "dictionary"
)

// Valid addon statuses
const (
	StatusIncomplete = "incomplete"
	StatusNominated  = "nominated"
	StatusApproved   = "approved"
	StatusDeleted    = "deleted"
)

// TableName ensures consistent table naming
func (Addon) TableName() string {
	return "addons"
}

// Validate checks if the addon has valid Type and Status values
func (a *Addon) Validate() error {
	switch a.Type {
	case TypeExtension, TypeTheme, TypeStaticTheme, TypeDictionary:
	default:
		return errors.New("invalid addon type: must be one of extension, theme, statictheme, or dictionary")
	}

	switch a.Status {
	case StatusIncomplete, StatusNominated, StatusApproved, StatusDeleted:
	default:
		return errors.New("invalid addon status: must be one of incomplete, nominated, approved, or deleted")
	}

	if a.Slug == "" {
		return errors.New("slug cannot be empty")
	}

	return nil
}

// BeforeCreate runs validation before saving a new addon
func (a *Addon) BeforeCreate(tx *gorm.DB) error {
	return a.Validate()
}

// BeforeUpdate runs validation before updating an existing addon
func (a *Addon) BeforeUpdate(tx *gorm.DB) error {
	return a.Validate()
}

// IsValidType checks if a given addon type string is valid
func IsValidType(t string) bool {
	switch t {
	case TypeExtension, TypeTheme, TypeStaticTheme, TypeDictionary:
		return true
	default:
		return false
	}
}
