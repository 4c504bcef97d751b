package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/skillpix/skillpix-server/internal/auth"
	"github.com/skillpix/skillpix-server/internal/middleware"
	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/internal/services"
	apperrors "github.com/skillpix/skillpix-server/pkg/errors"
	"github.com/skillpix/skillpix-server/pkg/response"
)

// UserHandler exposes admin user management endpoints.
type UserHandler struct {
	db       *gorm.DB
	service  *services.UserService
	sessions *iauth.SessionService
}

// NewUserHandler constructs a UserHandler backed by the user service.
func NewUserHandler(db *gorm.DB, sessions *iauth.SessionService, audit *services.AuditService) (*UserHandler, error) {
	service, err := services.NewUserService(db, sessions, audit)
	if err != nil {
		return nil, err
	}
	return &UserHandler{db: db, service: service, sessions: sessions}, nil
}

// List returns users matching the query filters.
//
// GET /api/admin/users?q=&role=&banned=&page=&limit=
func (h *UserHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 25)

	result, err := h.service.List(requestContext(c), services.ListUsersInput{
		Query:  c.Query("q"),
		Role:   c.Query("role"),
		Banned: parseBoolQuery(c, "banned"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"users": result.Items}, paginationMeta(page, limit, result.Total))
}

// Get returns a single user with session details.
//
// GET /api/admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	dto, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type updateUserRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Avatar      *string `json:"avatar"`
	Institution *string `json:"institution"`
	GradeLevel  *string `json:"grade_level"`
}

// Update applies profile changes.
//
// PATCH /api/admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.service.Update(requestContext(c), c.Param("id"), services.UpdateUserInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Avatar:      req.Avatar,
		Institution: req.Institution,
		GradeLevel:  req.GradeLevel,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type banUserRequest struct {
	Reason       string `json:"reason" validate:"required,max=512"`
	DurationDays int    `json:"duration_days" validate:"omitempty,min=1,max=3650"`
}

// Ban suspends an account. Zero duration means permanent.
//
// POST /api/admin/users/:id/ban
func (h *UserHandler) Ban(c *gin.Context) {
	var req banUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.BanUserInput{Reason: req.Reason}
	if req.DurationDays > 0 {
		duration := time.Duration(req.DurationDays) * 24 * time.Hour
		input.Duration = &duration
	}

	dto, err := h.service.Ban(requestContext(c), c.GetString(middleware.CtxUserIDKey), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Unban lifts a suspension.
//
// POST /api/admin/users/:id/unban
func (h *UserHandler) Unban(c *gin.Context) {
	dto, err := h.service.Unban(requestContext(c), c.GetString(middleware.CtxUserIDKey), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// SetRole changes a user's role.
//
// POST /api/admin/users/:id/role
func (h *UserHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.service.SetRole(requestContext(c), c.GetString(middleware.CtxUserIDKey), c.Param("id"), req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Delete removes a user account and its dependents.
//
// DELETE /api/admin/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.GetString(middleware.CtxUserIDKey), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Impersonate issues a time-boxed session acting as the target user.
//
// POST /api/admin/users/:id/impersonate
func (h *UserHandler) Impersonate(c *gin.Context) {
	adminID := c.GetString(middleware.CtxUserIDKey)

	var admin, target models.User
	if err := h.db.WithContext(requestContext(c)).First(&admin, "id = ?", adminID).Error; err != nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	if err := h.db.WithContext(requestContext(c)).First(&target, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperrors.ErrNotFound)
			return
		}
		response.Error(c, apperrors.ErrInternalServer)
		return
	}

	pair, session, err := h.sessions.Impersonate(&admin, &target, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, iauth.ErrImpersonationTargetBanned):
			response.Error(c, apperrors.NewBadRequest("target account is banned"))
		case errors.Is(err, iauth.ErrImpersonationDenied):
			response.Error(c, apperrors.ErrForbidden)
		default:
			response.Error(c, apperrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		"impersonating": gin.H{
			"id":       target.ID,
			"username": target.Username,
		},
		"expires_at": session.ExpiresAt,
	})
}

// StopImpersonating revokes the current impersonation session. Only sessions
// carrying an impersonator can be ended this way.
//
// POST /api/admin/stop-impersonating
func (h *UserHandler) StopImpersonating(c *gin.Context) {
	if strings.TrimSpace(c.GetString(middleware.CtxImpersonatorKey)) == "" {
		response.Error(c, apperrors.NewBadRequest("current session is not impersonating"))
		return
	}

	sessionID := c.GetString(middleware.CtxSessionIDKey)
	if err := h.sessions.RevokeSession(sessionID); err != nil && !errors.Is(err, iauth.ErrSessionNotFound) {
		response.Error(c, apperrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stopped": true})
}

// RevokeUserSessions invalidates every session of the target user.
//
// POST /api/admin/users/:id/sessions/revoke
func (h *UserHandler) RevokeUserSessions(c *gin.Context) {
	if err := h.sessions.RevokeUserSessions(c.Param("id")); err != nil {
		response.Error(c, apperrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// RevokeSession invalidates a single session by ID.
//
// POST /api/admin/sessions/:id/revoke
func (h *UserHandler) RevokeSession(c *gin.Context) {
	if err := h.sessions.RevokeSession(c.Param("id")); err != nil {
		if errors.Is(err, iauth.ErrSessionNotFound) {
			response.Error(c, apperrors.ErrNotFound)
			return
		}
		response.Error(c, apperrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
