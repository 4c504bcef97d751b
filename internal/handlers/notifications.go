package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/skillpix/skillpix-server/internal/auth"
	"github.com/skillpix/skillpix-server/internal/middleware"
	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/internal/notifications"
	"github.com/skillpix/skillpix-server/internal/services"
	apperrors "github.com/skillpix/skillpix-server/pkg/errors"
	"github.com/skillpix/skillpix-server/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for the notification inbox.
type NotificationHandler struct {
	service *services.NotificationService
	hub     *notifications.Hub
	jwt     *iauth.JWTService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(db *gorm.DB, hub *notifications.Hub, jwt *iauth.JWTService) (*NotificationHandler, error) {
	service, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	return &NotificationHandler{service: service, hub: hub, jwt: jwt}, nil
}

// List returns notifications for the current user.
//
// GET /api/notifications?page=&limit=&type=&category=&is_read=&q=
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 25)

	// "q" kept as an alias for symmetry with the admin user listing.
	search := c.Query("search")
	if search == "" {
		search = c.Query("q")
	}

	result, err := h.service.List(requestContext(c), services.ListNotificationsInput{
		UserID:   userID,
		Page:     page,
		Limit:    limit,
		Type:     c.Query("type"),
		Category: c.Query("category"),
		IsRead:   parseBoolQuery(c, "is_read"),
		Search:   search,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{
		"notifications": result.Items,
		"unread_count":  result.UnreadCount,
	}, paginationMeta(page, limit, result.Total))
}

type createNotificationRequest struct {
	UserID      string         `json:"user_id"`
	Title       string         `json:"title" validate:"required,max=255"`
	Message     string         `json:"message" validate:"required"`
	Type        string         `json:"type"`
	Category    string         `json:"category"`
	Priority    string         `json:"priority"`
	ActionURL   string         `json:"action_url"`
	ActionLabel string         `json:"action_label"`
	Metadata    map[string]any `json:"metadata"`
	ExpiresAt   *time.Time     `json:"expires_at"`
}

// Create registers a notification. Regular users may only notify themselves;
// admins may target any user.
//
// POST /api/notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	actorID := c.GetString(middleware.CtxUserIDKey)
	if actorID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req createNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	targetID := strings.TrimSpace(req.UserID)
	if targetID == "" {
		targetID = actorID
	}
	if targetID != actorID && c.GetString(middleware.CtxRoleKey) != models.RoleAdmin {
		response.Error(c, apperrors.ErrForbidden)
		return
	}

	dto, err := h.service.Create(requestContext(c), services.CreateNotificationInput{
		UserID:      targetID,
		Title:       req.Title,
		Message:     req.Message,
		Type:        req.Type,
		Category:    req.Category,
		Priority:    req.Priority,
		ActionURL:   req.ActionURL,
		ActionLabel: req.ActionLabel,
		Metadata:    req.Metadata,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

type updateNotificationRequest struct {
	IsRead     *bool `json:"is_read"`
	IsStarred  *bool `json:"is_starred"`
	IsArchived *bool `json:"is_archived"`
}

// Update mutates the state flags of a single notification.
//
// PATCH /api/notifications/:id
func (h *NotificationHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req updateNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.service.UpdateFlags(requestContext(c), userID, strings.TrimSpace(c.Param("id")), services.UpdateFlagsInput{
		IsRead:     req.IsRead,
		IsStarred:  req.IsStarred,
		IsArchived: req.IsArchived,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Delete removes a notification.
//
// DELETE /api/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(requestContext(c), userID, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type bulkUpdateRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1"`
	Action string   `json:"action" validate:"required,oneof=read unread archive"`
}

// BulkUpdate applies a flag action to a set of notifications owned by the
// current user. The reported count covers rows actually matched.
//
// PATCH /api/notifications/bulk
func (h *NotificationHandler) BulkUpdate(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req bulkUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	count, err := h.service.BulkUpdate(requestContext(c), services.BulkUpdateInput{
		IDs:    req.IDs,
		Action: req.Action,
		UserID: userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated_count": count})
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// BulkDelete removes a set of notifications owned by the current user.
//
// DELETE /api/notifications/bulk
func (h *NotificationHandler) BulkDelete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req bulkDeleteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	count, err := h.service.BulkDelete(requestContext(c), req.IDs, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted_count": count})
}

// MarkAllRead marks every unread notification of the current user as read.
//
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkAllRead(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// Stream upgrades the connection to a WebSocket that delivers notification
// events as they happen. Browsers cannot set headers on WebSocket dials, so
// the access token travels as a query parameter.
//
// GET /api/notifications/stream?token=
func (h *NotificationHandler) Stream(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	h.hub.Serve(claims.UserID, c.Writer, c.Request)
}
