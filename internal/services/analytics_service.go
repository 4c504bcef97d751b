package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/skillpix/skillpix-server/internal/models"
)

// Window after which a user without a login is counted as inactive.
const inactivityWindow = 30 * 24 * time.Hour

// UserHighlight is a compact user reference used in analytics summaries.
type UserHighlight struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Value    int64  `json:"value"`
}

// InstitutionStat pairs an institution with its member count.
type InstitutionStat struct {
	Institution string `json:"institution"`
	UserCount   int64  `json:"user_count"`
}

// AnalyticsSummary aggregates the platform-wide figures the admin
// dashboard displays.
type AnalyticsSummary struct {
	TotalUsers int64 `json:"total_users"`
	// ActiveUsers and InactiveUsers split the cohort of accounts older
	// than the activity window.
	ActiveUsers          int64             `json:"active_users"`
	InactiveUsers        int64             `json:"inactive_users"`
	BannedUsers          int64             `json:"banned_users"`
	AdminUsers           int64             `json:"admin_users"`
	RetentionRate        float64           `json:"retention_rate"`
	BannedRate           float64           `json:"banned_rate"`
	AdminRate            float64           `json:"admin_rate"`
	AvgEnrolledCourses   float64           `json:"avg_enrolled_courses"`
	AvgAchievements      float64           `json:"avg_achievements"`
	TopInstitutions      []InstitutionStat `json:"top_institutions"`
	MostActiveUsers      []UserHighlight   `json:"most_active_users"`
	TopAchievers         []UserHighlight   `json:"top_achievers"`
	TotalNotifications   int64             `json:"total_notifications"`
	UnreadNotifications  int64             `json:"unread_notifications"`
	OpenContactMessages  int64             `json:"open_contact_messages"`
	GeneratedAt          time.Time         `json:"generated_at"`
}

// AnalyticsService computes platform statistics with database-side
// aggregation rather than loading full tables into memory.
type AnalyticsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(db *gorm.DB) (*AnalyticsService, error) {
	if db == nil {
		return nil, errors.New("analytics service: db is required")
	}
	return &AnalyticsService{db: db, now: time.Now}, nil
}

// Summary computes the full analytics snapshot.
func (s *AnalyticsService) Summary(ctx context.Context) (*AnalyticsSummary, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	cutoff := now.Add(-inactivityWindow)

	summary := &AnalyticsSummary{GeneratedAt: now}

	users := func() *gorm.DB { return s.db.WithContext(ctx).Model(&models.User{}) }

	if err := users().Count(&summary.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("analytics service: count users: %w", err)
	}

	// Retention only considers accounts older than the activity window;
	// brand-new accounts cannot have churned yet.
	var established int64
	if err := users().Where("created_at < ?", cutoff).Count(&established).Error; err != nil {
		return nil, fmt.Errorf("analytics service: count established users: %w", err)
	}
	if err := users().Where("created_at < ? AND last_login_at IS NOT NULL AND last_login_at >= ?", cutoff, cutoff).
		Count(&summary.ActiveUsers).Error; err != nil {
		return nil, fmt.Errorf("analytics service: count active users: %w", err)
	}
	summary.InactiveUsers = established - summary.ActiveUsers
	if err := users().Where("banned = ?", true).Count(&summary.BannedUsers).Error; err != nil {
		return nil, fmt.Errorf("analytics service: count banned users: %w", err)
	}
	if err := users().Where("role = ?", models.RoleAdmin).Count(&summary.AdminUsers).Error; err != nil {
		return nil, fmt.Errorf("analytics service: count admins: %w", err)
	}

	if established > 0 {
		summary.RetentionRate = ratio(summary.ActiveUsers, established)
	}
	if summary.TotalUsers > 0 {
		summary.BannedRate = ratio(summary.BannedUsers, summary.TotalUsers)
		summary.AdminRate = ratio(summary.AdminUsers, summary.TotalUsers)
	}

	var avgAchievements *float64
	if err := users().Select("AVG(achievement_count)").Scan(&avgAchievements).Error; err != nil {
		return nil, fmt.Errorf("analytics service: average achievements: %w", err)
	}
	if avgAchievements != nil {
		summary.AvgAchievements = *avgAchievements
	}

	avgCourses, err := s.averageEnrolledCourses(ctx, summary.TotalUsers)
	if err != nil {
		return nil, err
	}
	summary.AvgEnrolledCourses = avgCourses

	if summary.TopInstitutions, err = s.topInstitutions(ctx, 5); err != nil {
		return nil, err
	}
	if summary.MostActiveUsers, err = s.mostActiveUsers(ctx, 5); err != nil {
		return nil, err
	}
	if summary.TopAchievers, err = s.topAchievers(ctx, 5); err != nil {
		return nil, err
	}

	notifications := s.db.WithContext(ctx).Model(&models.Notification{})
	if err := notifications.Count(&summary.TotalNotifications).Error; err != nil {
		return nil, fmt.Errorf("analytics service: count notifications: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("is_read = ?", false).
		Count(&summary.UnreadNotifications).Error; err != nil {
		return nil, fmt.Errorf("analytics service: count unread notifications: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.ContactMessage{}).
		Where("resolved = ?", false).
		Count(&summary.OpenContactMessages).Error; err != nil {
		return nil, fmt.Errorf("analytics service: count open contact messages: %w", err)
	}

	return summary, nil
}

// averageEnrolledCourses scans only the enrolled_courses column; the value is
// a comma-separated id list, so the split happens here rather than in SQL.
func (s *AnalyticsService) averageEnrolledCourses(ctx context.Context, totalUsers int64) (float64, error) {
	if totalUsers == 0 {
		return 0, nil
	}

	var values []string
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Pluck("enrolled_courses", &values).Error; err != nil {
		return 0, fmt.Errorf("analytics service: scan enrolled courses: %w", err)
	}

	var total int64
	for _, value := range values {
		total += int64(len(splitCourses(value)))
	}
	return float64(total) / float64(totalUsers), nil
}

func (s *AnalyticsService) topInstitutions(ctx context.Context, limit int) ([]InstitutionStat, error) {
	var stats []InstitutionStat
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("institution, COUNT(*) AS user_count").
		Where("institution <> ''").
		Group("institution").
		Order("user_count DESC, institution ASC").
		Limit(limit).
		Scan(&stats).Error; err != nil {
		return nil, fmt.Errorf("analytics service: top institutions: %w", err)
	}
	if stats == nil {
		stats = []InstitutionStat{}
	}
	return stats, nil
}

func (s *AnalyticsService) mostActiveUsers(ctx context.Context, limit int) ([]UserHighlight, error) {
	var rows []UserHighlight
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Select("users.id AS id, users.username AS username, COUNT(sessions.id) AS value").
		Joins("JOIN users ON users.id = sessions.user_id").
		Group("users.id").
		Order("value DESC, username ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("analytics service: most active users: %w", err)
	}
	if rows == nil {
		rows = []UserHighlight{}
	}
	return rows, nil
}

func (s *AnalyticsService) topAchievers(ctx context.Context, limit int) ([]UserHighlight, error) {
	var rows []UserHighlight
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id, username, achievement_count AS value").
		Where("achievement_count > 0").
		Order("achievement_count DESC, username ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("analytics service: top achievers: %w", err)
	}
	if rows == nil {
		rows = []UserHighlight{}
	}
	return rows, nil
}

func ratio(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	value := float64(part) / float64(whole)
	// two decimal places is enough for a dashboard percentage
	return float64(int(value*10000+0.5)) / 10000
}
