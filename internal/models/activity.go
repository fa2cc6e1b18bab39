package models

import (
	"encoding/json"
	"time"
)

// ActivityLog records an auditable action against an addon, with a JSON
// argument list describing the objects involved.
type ActivityLog struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Action    string          `gorm:"not null;index" json:"action"`
	AddonID   uint            `gorm:"index;not null" json:"addon_id"`
	UserID    *uint           `gorm:"index" json:"user_id,omitempty"`
	Arguments json.RawMessage `gorm:"type:jsonb" json:"arguments,omitempty"`
	CreatedAt time.Time       `gorm:"index" json:"timestamp"`
}

// Activity action constants
const (
	ActionAddRating  = "add_rating"
	ActionAddVersion = "add_version"
)

// TableName ensures consistent table naming
func (ActivityLog) TableName() string {
	return "activity_logs"
}

// SetArguments marshals the given value into the Arguments field.
func (a *ActivityLog) SetArguments(v interface{}) error {
	if v == nil {
		a.Arguments = nil
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.Arguments = data
	return nil
}

// GetArgumentsMap unmarshals Arguments into a generic map.
func (a *ActivityLog) GetArgumentsMap() (map[string]interface{}, error) {
	if len(a.Arguments) == 0 {
		return nil, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(a.Arguments, &out); err != nil {
		return nil, err
	}
	return out, nil
}
