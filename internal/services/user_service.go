package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/skillpix/skillpix-server/internal/models"
	apperrors "github.com/skillpix/skillpix-server/pkg/errors"
	"github.com/skillpix/skillpix-server/pkg/metrics"
)

// SessionRevoker invalidates every active session of a user. The auth
// session service satisfies it; tests plug in fakes.
type SessionRevoker interface {
	RevokeUserSessions(userID string) error
}

// UserDTO is the admin-facing projection of a user account.
type UserDTO struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name,omitempty"`
	LastName         string     `json:"last_name,omitempty"`
	Avatar           string     `json:"avatar,omitempty"`
	Role             string     `json:"role"`
	Institution      string     `json:"institution,omitempty"`
	GradeLevel       string     `json:"grade_level,omitempty"`
	EnrolledCourses  []string   `json:"enrolled_courses"`
	AchievementCount int        `json:"achievement_count"`
	Banned           bool       `json:"banned"`
	BanReason        string     `json:"ban_reason,omitempty"`
	BanExpires       *time.Time `json:"ban_expires,omitempty"`
	ActiveSessions   int        `json:"active_sessions"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ListUsersInput defines filters for the admin user listing.
type ListUsersInput struct {
	Query  string
	Role   string
	Banned *bool
	Page   int
	Limit  int
}

// UserPage bundles a page of users with its total match count.
type UserPage struct {
	Items []UserDTO
	Total int64
}

// UpdateUserInput holds the mutable profile fields. Nil pointers are skipped.
type UpdateUserInput struct {
	FirstName   *string
	LastName    *string
	Avatar      *string
	Institution *string
	GradeLevel  *string
}

// BanUserInput describes a ban request. A nil Duration makes the ban permanent.
type BanUserInput struct {
	Reason   string
	Duration *time.Duration
}

// UserService implements the admin user management operations.
type UserService struct {
	db       *gorm.DB
	sessions SessionRevoker
	audit    *AuditService
	now      func() time.Time
}

// NewUserService constructs a UserService. The revoker and audit service are
// optional; when absent bans simply skip session invalidation and audit trails.
func NewUserService(db *gorm.DB, sessions SessionRevoker, audit *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, sessions: sessions, audit: audit, now: time.Now}, nil
}

// List returns a page of users matching the supplied filters, newest first.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*UserPage, error) {
	ctx = ensureContext(ctx)

	page := input.Page
	if page <= 0 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := s.db.WithContext(ctx).Model(&models.User{})

	if q := strings.TrimSpace(input.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(institution) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if role := strings.TrimSpace(input.Role); role != "" {
		query = query.Where("role = ?", role)
	}
	if input.Banned != nil {
		query = query.Where("banned = ?", *input.Banned)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("user service: count users: %w", err)
	}

	var rows []models.User
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}

	items := make([]UserDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapUser(row, 0))
	}
	return &UserPage{Items: items, Total: total}, nil
}

// GetByID loads a single user including their active session count.
func (s *UserService) GetByID(ctx context.Context, userID string) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var active int64
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, s.now().UTC()).
		Count(&active).Error; err != nil {
		return nil, fmt.Errorf("user service: count sessions: %w", err)
	}

	dto := mapUser(*user, int(active))
	return &dto, nil
}

// Update applies profile changes to a user.
func (s *UserService) Update(ctx context.Context, userID string, input UpdateUserInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*input.Avatar)
	}
	if input.Institution != nil {
		updates["institution"] = strings.TrimSpace(*input.Institution)
	}
	if input.GradeLevel != nil {
		updates["grade_level"] = strings.TrimSpace(*input.GradeLevel)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("user service: update user: %w", err)
		}
	}

	return s.GetByID(ctx, userID)
}

// Ban suspends a user account, revoking all active sessions. Admin accounts
// cannot be banned.
func (s *UserService) Ban(ctx context.Context, actorID, userID string, input BanUserInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		s.recordAdminAction(ctx, actorID, "user.ban", userID, "denied")
		return nil, apperrors.ErrForbidden
	}

	var expires *time.Time
	if input.Duration != nil {
		until := s.now().UTC().Add(*input.Duration)
		expires = &until
	}

	updates := map[string]any{
		"banned":      true,
		"ban_reason":  strings.TrimSpace(input.Reason),
		"ban_expires": expires,
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: ban user: %w", err)
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeUserSessions(userID); err != nil {
			return nil, fmt.Errorf("user service: revoke sessions: %w", err)
		}
	}

	s.recordAdminAction(ctx, actorID, "user.ban", userID, "ok")
	return s.GetByID(ctx, userID)
}

// Unban lifts a suspension and clears the ban bookkeeping columns.
func (s *UserService) Unban(ctx context.Context, actorID, userID string) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"banned":      false,
		"ban_reason":  "",
		"ban_expires": nil,
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: unban user: %w", err)
	}

	s.recordAdminAction(ctx, actorID, "user.unban", userID, "ok")
	return s.GetByID(ctx, userID)
}

// SetRole changes a user's role. Only the closed role set is accepted, and
// an admin cannot demote their own account.
func (s *UserService) SetRole(ctx context.Context, actorID, userID, role string) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	role = strings.TrimSpace(role)
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}
	if actorID == userID && role != models.RoleAdmin {
		s.recordAdminAction(ctx, actorID, "user.set_role", userID, "denied")
		return nil, apperrors.NewBadRequest("cannot demote your own account")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("user service: set role: %w", err)
	}

	s.recordAdminAction(ctx, actorID, "user.set_role", userID, "ok")
	return s.GetByID(ctx, userID)
}

// Delete removes a user account. Sessions and notifications cascade.
func (s *UserService) Delete(ctx context.Context, actorID, userID string) error {
	ctx = ensureContext(ctx)

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		s.recordAdminAction(ctx, actorID, "user.delete", userID, "denied")
		return apperrors.ErrForbidden
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeUserSessions(userID); err != nil {
			return fmt.Errorf("user service: revoke sessions: %w", err)
		}
	}

	// SQLite does not enforce the cascade constraints gorm declares, so the
	// dependents are removed explicitly.
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", userID).Error
	}); err != nil {
		return fmt.Errorf("user service: delete user: %w", err)
	}

	s.recordAdminAction(ctx, actorID, "user.delete", userID, "ok")
	return nil
}

func (s *UserService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

func (s *UserService) recordAdminAction(ctx context.Context, actorID, action, resource, result string) {
	metrics.AdminActions.WithLabelValues(action, result).Inc()
	entry := AuditEntry{
		Action:   action,
		Resource: resource,
		Result:   result,
	}
	if actorID = strings.TrimSpace(actorID); actorID != "" {
		entry.ActorID = &actorID
	}
	recordAudit(s.audit, ctx, entry)
}

func mapUser(row models.User, activeSessions int) UserDTO {
	return UserDTO{
		ID:               row.ID,
		Username:         row.Username,
		Email:            row.Email,
		FirstName:        row.FirstName,
		LastName:         row.LastName,
		Avatar:           row.Avatar,
		Role:             defaultIfEmpty(row.Role, models.RoleUser),
		Institution:      row.Institution,
		GradeLevel:       row.GradeLevel,
		EnrolledCourses:  splitCourses(row.EnrolledCourses),
		AchievementCount: row.AchievementCount,
		Banned:           row.Banned,
		BanReason:        row.BanReason,
		BanExpires:       row.BanExpires,
		ActiveSessions:   activeSessions,
		LastLoginAt:      row.LastLoginAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func splitCourses(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
