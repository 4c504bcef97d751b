package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/skillpix/skillpix-server/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Notification{},
		&models.ContactMessage{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}

// SeedData applies idempotent data fixes required at start-up. It currently
// normalises legacy rows missing a role.
func SeedData(db *gorm.DB) error {
	return db.Model(&models.User{}).
		Where("role IS NULL OR role = ?", "").
		Update("role", models.RoleUser).Error
}

// PromoteBootstrapAdmins grants the admin role to the configured principal
// emails. Unknown addresses are skipped; they gain the role on first sign-up
// via the next start-up.
func PromoteBootstrapAdmins(db *gorm.DB, emails []string) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	cleaned := make([]string, 0, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			cleaned = append(cleaned, email)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	return db.Model(&models.User{}).
		Where("LOWER(email) IN ?", cleaned).
		Where("role <> ?", models.RoleAdmin).
		Update("role", models.RoleAdmin).Error
}
