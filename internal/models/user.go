package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles assignable to platform users. The set is closed on purpose; role
// changes through the admin API are validated against it.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User describes a Skillpix account with the profile columns the back-office
// manages on top of the identity fields.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`

	Role string `gorm:"type:varchar(32);default:'user';index" json:"role"`

	Institution      string `gorm:"index" json:"institution"`
	GradeLevel       string `json:"grade_level"`
	EnrolledCourses  string `gorm:"type:text" json:"enrolled_courses"` // comma-separated course ids
	AchievementCount int    `gorm:"default:0" json:"achievement_count"`

	Banned     bool       `gorm:"default:false;index" json:"banned"`
	BanReason  string     `json:"ban_reason,omitempty"`
	BanExpires *time.Time `json:"ban_expires,omitempty"`

	Notifications []Notification `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Sessions      []Session      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsBanned reports whether the ban is currently in force, honouring expiry.
func (u *User) IsBanned(now time.Time) bool {
	if !u.Banned {
		return false
	}
	if u.BanExpires != nil && u.BanExpires.Before(now) {
		return false
	}
	return true
}
