package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/internal/notifications"
	apperrors "github.com/skillpix/skillpix-server/pkg/errors"
	"github.com/skillpix/skillpix-server/pkg/metrics"
)

// Closed sets accepted at the API boundary. The store itself keeps plain
// strings, so older rows with unknown values still load.
var (
	NotificationTypes      = []string{"info", "success", "warning", "error", "achievement", "system"}
	NotificationPriorities = []string{"low", "medium", "high", "urgent"}
)

// Bulk actions supported by BulkUpdate.
const (
	BulkActionRead    = "read"
	BulkActionUnread  = "unread"
	BulkActionArchive = "archive"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	ActionURL   string         `json:"action_url,omitempty"`
	ActionLabel string         `json:"action_label,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Type        string         `json:"type"`
	Category    string         `json:"category"`
	Priority    string         `json:"priority"`
	IsRead      bool           `json:"is_read"`
	IsStarred   bool           `json:"is_starred"`
	IsArchived  bool           `json:"is_archived"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID      string
	Title       string
	Message     string
	Type        string
	Category    string
	Priority    string
	ActionURL   string
	ActionLabel string
	Metadata    map[string]any
	ExpiresAt   *time.Time
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID   string
	Page     int
	Limit    int
	Type     string
	Category string
	IsRead   *bool
	Search   string
}

// NotificationPage bundles a page of notifications with counts the inbox needs.
type NotificationPage struct {
	Items       []NotificationDTO
	Total       int64
	UnreadCount int64
}

// UpdateFlagsInput enumerates the mutable state flags. Nil fields are untouched.
type UpdateFlagsInput struct {
	IsRead     *bool
	IsStarred  *bool
	IsArchived *bool
}

// BulkUpdateInput describes a bulk flag mutation over an id set.
type BulkUpdateInput struct {
	IDs    []string
	Action string
	UserID string // optional owner scope
}

// NotificationService manages user in-app notifications.
type NotificationService struct {
	db  *gorm.DB
	hub *notifications.Hub
	now func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, hub *notifications.Hub) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub, now: time.Now}, nil
}

// List returns a page of notifications for the supplied user ordered by
// recency, together with the total match count and the user's unread count.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	page := input.Page
	if page <= 0 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ?", userID)

	if t := strings.TrimSpace(input.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if category := strings.TrimSpace(input.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if input.IsRead != nil {
		query = query.Where("is_read = ?", *input.IsRead)
	}
	if q := strings.TrimSpace(input.Search); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(message) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	var unread int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, fmt.Errorf("notification service: count unread: %w", err)
	}

	return &NotificationPage{
		Items:       mapNotificationRows(rows),
		Total:       total,
		UnreadCount: unread,
	}, nil
}

// Create registers a new notification and broadcasts the event to subscribers.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewBadRequest("message is required")
	}

	notificationType := defaultIfEmpty(strings.TrimSpace(input.Type), "info")
	if !containsString(NotificationTypes, notificationType) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown notification type %q", notificationType))
	}
	priority := defaultIfEmpty(strings.TrimSpace(input.Priority), "medium")
	if !containsString(NotificationPriorities, priority) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown priority %q", priority))
	}

	notification := models.Notification{
		UserID:      userID,
		Title:       title,
		Message:     message,
		Type:        notificationType,
		Category:    defaultIfEmpty(strings.TrimSpace(input.Category), "general"),
		Priority:    priority,
		ActionURL:   strings.TrimSpace(input.ActionURL),
		ActionLabel: strings.TrimSpace(input.ActionLabel),
		ExpiresAt:   input.ExpiresAt,
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	metrics.NotificationEvents.WithLabelValues("created").Inc()

	dto := mapNotification(notification)
	s.broadcast(userID, "notification.created", notifications.Event{
		Notification: &dto,
	})
	return &dto, nil
}

// UpdateFlags mutates the read/star/archive flags of a single notification
// owned by the supplied user. The read_at timestamp tracks the is_read flag.
func (s *NotificationService) UpdateFlags(ctx context.Context, userID, notificationID string, input UpdateFlagsInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	updates := map[string]any{}
	now := s.now().UTC()

	if input.IsRead != nil && *input.IsRead != notification.IsRead {
		updates["is_read"] = *input.IsRead
		if *input.IsRead {
			updates["read_at"] = now
			notification.ReadAt = &now
			metrics.NotificationEvents.WithLabelValues("read").Inc()
		} else {
			updates["read_at"] = nil
			notification.ReadAt = nil
			metrics.NotificationEvents.WithLabelValues("unread").Inc()
		}
		notification.IsRead = *input.IsRead
	}
	if input.IsStarred != nil && *input.IsStarred != notification.IsStarred {
		updates["is_starred"] = *input.IsStarred
		notification.IsStarred = *input.IsStarred
	}
	if input.IsArchived != nil && *input.IsArchived != notification.IsArchived {
		updates["is_archived"] = *input.IsArchived
		notification.IsArchived = *input.IsArchived
		if *input.IsArchived {
			metrics.NotificationEvents.WithLabelValues("archived").Inc()
		}
	}

	// A flag PATCH always refreshes updated_at, even when every flag
	// already holds the requested value.
	updates["updated_at"] = now
	if err := s.db.WithContext(ctx).Model(&notification).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("notification service: update flags: %w", err)
	}
	notification.UpdatedAt = now

	dto := mapNotification(notification)
	s.broadcast(userID, "notification.updated", notifications.Event{
		Notification:   &dto,
		NotificationID: notification.ID,
	})
	return &dto, nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	metrics.NotificationEvents.WithLabelValues("deleted").Inc()
	s.broadcast(userID, "notification.deleted", notifications.Event{
		NotificationID: notificationID,
	})
	return nil
}

// BulkUpdate applies one of the fixed flag sets to every matching row. The
// returned count reflects rows actually matched, not the length of the input.
func (s *NotificationService) BulkUpdate(ctx context.Context, input BulkUpdateInput) (int64, error) {
	ctx = ensureContext(ctx)

	ids := normaliseIDs(input.IDs)
	if len(ids) == 0 {
		return 0, apperrors.NewBadRequest("notification ids are required")
	}

	now := s.now().UTC()
	var updates map[string]any
	switch strings.TrimSpace(input.Action) {
	case BulkActionRead:
		updates = map[string]any{"is_read": true, "read_at": now}
	case BulkActionUnread:
		updates = map[string]any{"is_read": false, "read_at": nil}
	case BulkActionArchive:
		updates = map[string]any{"is_archived": true}
	default:
		return 0, apperrors.NewBadRequest("action must be one of read, unread, archive")
	}

	query := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ?", ids)
	if userID := strings.TrimSpace(input.UserID); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: bulk update: %w", result.Error)
	}

	metrics.NotificationEvents.WithLabelValues("bulk_update").Inc()
	if userID := strings.TrimSpace(input.UserID); userID != "" && result.RowsAffected > 0 {
		s.broadcast(userID, "notification.bulk_updated", notifications.Event{})
	}
	return result.RowsAffected, nil
}

// BulkDelete hard-deletes every matching row, optionally scoped to an owner.
func (s *NotificationService) BulkDelete(ctx context.Context, ids []string, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	cleaned := normaliseIDs(ids)
	if len(cleaned) == 0 {
		return 0, apperrors.NewBadRequest("notification ids are required")
	}

	query := s.db.WithContext(ctx).Where("id IN ?", cleaned)
	if owner := strings.TrimSpace(userID); owner != "" {
		query = query.Where("user_id = ?", owner)
	}

	result := query.Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: bulk delete: %w", result.Error)
	}

	metrics.NotificationEvents.WithLabelValues("bulk_delete").Inc()
	if owner := strings.TrimSpace(userID); owner != "" && result.RowsAffected > 0 {
		s.broadcast(owner, "notification.bulk_deleted", notifications.Event{})
	}
	return result.RowsAffected, nil
}

// MarkAllRead marks all unread notifications for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.broadcast(userID, "notification.read_all", notifications.Event{})
	return nil
}

// PurgeExpired removes notifications whose expiry timestamp has passed.
func (s *NotificationService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: purge expired: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.NotificationEvents.WithLabelValues("expired").Add(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) broadcast(userID, event string, payload notifications.Event) {
	if s.hub == nil {
		return
	}
	payload.Event = event
	s.hub.Broadcast(userID, payload)
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          row.ID,
		UserID:      row.UserID,
		Title:       row.Title,
		Message:     row.Message,
		ActionURL:   row.ActionURL,
		ActionLabel: row.ActionLabel,
		Metadata:    decodeJSON(row.Metadata),
		Type:        defaultIfEmpty(row.Type, "info"),
		Category:    defaultIfEmpty(row.Category, "general"),
		Priority:    defaultIfEmpty(row.Priority, "medium"),
		IsRead:      row.IsRead,
		IsStarred:   row.IsStarred,
		IsArchived:  row.IsArchived,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		ReadAt:      row.ReadAt,
		ExpiresAt:   row.ExpiresAt,
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
