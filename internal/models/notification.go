package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message recorded for a user when an invitation
// changes state.
type Notification struct {
	BaseModel

	UserID   string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Type     string         `gorm:"not null" json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`
	IsRead   bool           `gorm:"default:false" json:"is_read"`
	ReadAt   *time.Time     `json:"read_at,omitempty"`
}
