package models

// Tag is a free-form label attached to addons.
type Tag struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	TagText string `gorm:"uniqueIndex;not null" json:"tag_text"`
}

// TableName ensures consistent table naming
func (Tag) TableName() string {
	return "tags"
}

// Category is a curated browse category, scoped per addon type.
type Category struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Type   string `gorm:"uniqueIndex:idx_categories_type_slug;not null" json:"type"`
	Slug   string `gorm:"uniqueIndex:idx_categories_type_slug;not null" json:"slug"`
	Name   string `json:"name"`
	Weight int    `gorm:"default:0" json:"weight"`
}

// TableName ensures consistent table naming
func (Category) TableName() string {
	return "categories"
}
