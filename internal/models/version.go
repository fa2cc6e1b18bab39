package models

import (
	"time"

	"github.com/lib/pq"
)

// Version represents a single uploaded release of an addon.
type Version struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	AddonID   uint     `gorm:"index;not null" json:"addon_id"`
	Version   string   `gorm:"not null" json:"version"`
	LicenseID *uint    `json:"license_id,omitempty"`
	License   *License `gorm:"foreignKey:LicenseID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Files []File `gorm:"foreignKey:VersionID" json:"files,omitempty"`
}

// TableName ensures consistent table naming
func (Version) TableName() string {
	return "versions"
}

// File represents the packaged artifact belonging to a version.
type File struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	VersionID      uint   `gorm:"index;not null" json:"version_id"`
	Filename       string `gorm:"not null" json:"filename"`
	Size           int64  `json:"size"`
	Hash           string `json:"hash"`
	Status         string `gorm:"index;not null;default:'nominated'" json:"status"`
	IsWebextension bool   `gorm:"default:false" json:"is_webextension"`

	// CertSerialNum is set by the signing service; a file is never
	// approved before it holds a serial.
	CertSerialNum string `json:"cert_serial_num,omitempty"`

	// Permissions declared in the manifest, relevant for webextensions.
	Permissions pq.StringArray `gorm:"type:text[]" json:"permissions"`

	DateStatusChanged *time.Time `json:"date_status_changed,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName ensures consistent table naming
func (File) TableName() string {
	return "files"
}

// HasPermission reports whether the file declares the given permission.
func (f *File) HasPermission(perm string) bool {
	for _, p := range f.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// FileUpload is a pending upload record created before a package build.
type FileUpload struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      string    `gorm:"uniqueIndex;not null" json:"uuid"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Valid     bool      `gorm:"default:false" json:"valid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName ensures consistent table naming
func (FileUpload) TableName() string {
	return "file_uploads"
}

// License represents a builtin license an addon version can reference.
type License struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Builtin int    `gorm:"uniqueIndex;not null" json:"builtin"`
	Name    string `json:"name"`
}

// TableName ensures consistent table naming
func (License) TableName() string {
	return "licenses"
}
