package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification represents an in-app notification for a user. Rows are removed
// together with their owner; there are no shared or group notifications.
type Notification struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE" json:"user_id"`

	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	ActionURL   string         `gorm:"type:text" json:"action_url,omitempty"`
	ActionLabel string         `gorm:"type:varchar(128)" json:"action_label,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`

	Type     string `gorm:"type:varchar(32);default:'info';index" json:"type"`
	Category string `gorm:"type:varchar(64);default:'general';index" json:"category"`
	Priority string `gorm:"type:varchar(16);default:'medium'" json:"priority"`

	IsRead     bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	IsStarred  bool       `gorm:"default:false" json:"is_starred"`
	IsArchived bool       `gorm:"default:false;index" json:"is_archived"`

	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
}
