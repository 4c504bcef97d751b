package models

import "time"

// ContactMessage stores a submission from the public contact form.
type ContactMessage struct {
	BaseModel

	Name    string `gorm:"type:varchar(128);not null" json:"name"`
	Email   string `gorm:"type:varchar(255);not null;index" json:"email"`
	Subject string `gorm:"type:varchar(255)" json:"subject"`
	Message string `gorm:"type:text;not null" json:"message"`

	Resolved   bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
