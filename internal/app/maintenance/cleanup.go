package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/skillpix/skillpix-server/internal/auth"
	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/internal/services"
	"github.com/skillpix/skillpix-server/pkg/logger"
)

const (
	defaultAuditRetentionDays   = 90
	defaultContactRetentionDays = 30
	defaultNotificationSpec     = "@hourly"
	defaultSessionSpec          = "@hourly"
	defaultRetentionSpec        = "@daily"
)

// Cleaner coordinates background maintenance: purging expired notifications
// and sessions, and enforcing retention on audit logs and resolved contact
// messages.
type Cleaner struct {
	db            *gorm.DB
	sessions      *iauth.SessionService
	notifications *services.NotificationService
	audit         *services.AuditService
	contact       *services.ContactService
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	enabled       bool

	auditRetentionDays   int
	contactRetentionDays int

	notificationSchedule string
	sessionSchedule      string
	retentionSchedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.auditRetentionDays = days
		}
	}
}

// WithContactRetentionDays adjusts how long resolved contact messages are kept.
func WithContactRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.contactRetentionDays = days
		}
	}
}

// WithNotificationSchedule overrides the cron spec for notification purging.
func WithNotificationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.notificationSchedule = spec
		}
	}
}

// WithSessionSchedule overrides the cron spec for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithRetentionSchedule overrides the cron spec for retention enforcement.
func WithRetentionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.retentionSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, sessions *iauth.SessionService, notifications *services.NotificationService, audit *services.AuditService, contact *services.ContactService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                   db,
		sessions:             sessions,
		notifications:        notifications,
		audit:                audit,
		contact:              contact,
		now:                  time.Now,
		auditRetentionDays:   defaultAuditRetentionDays,
		contactRetentionDays: defaultContactRetentionDays,
		notificationSchedule: defaultNotificationSpec,
		sessionSchedule:      defaultSessionSpec,
		retentionSchedule:    defaultRetentionSpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.sessions != nil || cleaner.notifications != nil ||
		cleaner.audit != nil || cleaner.contact != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at
// least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.notifications != nil {
		if _, err := c.cron.AddFunc(c.notificationSchedule, func() {
			if count, err := c.notifications.PurgeExpired(context.Background(), c.now()); err != nil {
				c.log.Warn("notification purge failed", zap.Error(err))
			} else if count > 0 {
				c.log.Info("purged expired notifications", zap.Int64("count", count))
			}
		}); err != nil {
			return err
		}
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.sessions.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.auditRetentionDays > 0 {
		if _, err := c.cron.AddFunc(c.retentionSchedule, func() {
			if _, err := c.audit.CleanupOlderThan(context.Background(), c.auditRetentionDays); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.contact != nil && c.contactRetentionDays > 0 {
		if _, err := c.cron.AddFunc(c.retentionSchedule, func() {
			cutoff := c.now().AddDate(0, 0, -c.contactRetentionDays)
			if _, err := c.contact.CleanupResolvedBefore(context.Background(), cutoff); err != nil {
				c.log.Warn("contact cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.retentionSchedule, func() {
			if _, err := CleanupCacheEntries(context.Background(), c.db, c.now()); err != nil {
				c.log.Warn("cache cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.notifications != nil {
		if _, err := c.notifications.PurgeExpired(ctx, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.auditRetentionDays > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.auditRetentionDays); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.contact != nil && c.contactRetentionDays > 0 {
		cutoff := c.now().AddDate(0, 0, -c.contactRetentionDays)
		if _, err := c.contact.CleanupResolvedBefore(ctx, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil {
		if _, err := CleanupCacheEntries(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupCacheEntries removes expired rows from the database cache table.
func CleanupCacheEntries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup cache entries: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}
