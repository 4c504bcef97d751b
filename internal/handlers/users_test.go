package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/skillpix/skillpix-server/internal/auth"
	"github.com/skillpix/skillpix-server/internal/database/testutil"
	"github.com/skillpix/skillpix-server/internal/middleware"
	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/internal/services"
)

func newUserFixture(t *testing.T) (*UserHandler, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-secret-test-secret-test-secret",
		Issuer:         "skillpix-test",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwt, iauth.SessionConfig{})
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	handler, err := NewUserHandler(db, sessions, audit)
	require.NoError(t, err)
	return handler, db
}

func adminAndStudent(t *testing.T, db *gorm.DB) (models.User, models.User) {
	t.Helper()
	admin := models.User{Username: "root", Email: "root@example.com", Password: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)
	student := models.User{Username: "alice", Email: "alice@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&student).Error)
	return admin, student
}

func TestUserHandlerListWithFilters(t *testing.T) {
	handler, db := newUserFixture(t)
	adminAndStudent(t, db)

	c, recorder := newTestContext(t, http.MethodGet, "/api/admin/users?role=admin", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var data struct {
		Users []services.UserDTO `json:"users"`
	}
	payload := decodeData(t, recorder, &data)
	require.Len(t, data.Users, 1)
	require.Equal(t, "root", data.Users[0].Username)
	require.Equal(t, 1, payload.Meta.Total)
}

func TestUserHandlerBanAndUnban(t *testing.T) {
	handler, db := newUserFixture(t)
	admin, student := adminAndStudent(t, db)

	c, recorder := newTestContext(t, http.MethodPost, "/api/admin/users/"+student.ID+"/ban", banUserRequest{
		Reason:       "cheating",
		DurationDays: 7,
	})
	c.Params = gin.Params{gin.Param{Key: "id", Value: student.ID}}
	c.Set(middleware.CtxUserIDKey, admin.ID)
	handler.Ban(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var dto services.UserDTO
	decodeData(t, recorder, &dto)
	require.True(t, dto.Banned)
	require.Equal(t, "cheating", dto.BanReason)
	require.NotNil(t, dto.BanExpires)

	// an audit entry was recorded for the action
	var logCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "user.ban").Count(&logCount).Error)
	require.EqualValues(t, 1, logCount)

	c2, recorder2 := newTestContext(t, http.MethodPost, "/api/admin/users/"+student.ID+"/unban", nil)
	c2.Params = gin.Params{gin.Param{Key: "id", Value: student.ID}}
	c2.Set(middleware.CtxUserIDKey, admin.ID)
	handler.Unban(c2)
	require.Equal(t, http.StatusOK, recorder2.Code)

	decodeData(t, recorder2, &dto)
	require.False(t, dto.Banned)
}

func TestUserHandlerBanRejectsAdmin(t *testing.T) {
	handler, db := newUserFixture(t)
	admin, _ := adminAndStudent(t, db)
	other := models.User{Username: "root2", Email: "root2@example.com", Password: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&other).Error)

	c, recorder := newTestContext(t, http.MethodPost, "/api/admin/users/"+other.ID+"/ban", banUserRequest{Reason: "nope"})
	c.Params = gin.Params{gin.Param{Key: "id", Value: other.ID}}
	c.Set(middleware.CtxUserIDKey, admin.ID)
	handler.Ban(c)
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestUserHandlerSetRole(t *testing.T) {
	handler, db := newUserFixture(t)
	admin, student := adminAndStudent(t, db)

	c, recorder := newTestContext(t, http.MethodPost, "/api/admin/users/"+student.ID+"/role", setRoleRequest{Role: "admin"})
	c.Params = gin.Params{gin.Param{Key: "id", Value: student.ID}}
	c.Set(middleware.CtxUserIDKey, admin.ID)
	handler.SetRole(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var dto services.UserDTO
	decodeData(t, recorder, &dto)
	require.Equal(t, models.RoleAdmin, dto.Role)

	c2, recorder2 := newTestContext(t, http.MethodPost, "/api/admin/users/"+student.ID+"/role", setRoleRequest{Role: "superuser"})
	c2.Params = gin.Params{gin.Param{Key: "id", Value: student.ID}}
	c2.Set(middleware.CtxUserIDKey, admin.ID)
	handler.SetRole(c2)
	require.Equal(t, http.StatusBadRequest, recorder2.Code)
}

func TestUserHandlerImpersonateFlow(t *testing.T) {
	handler, db := newUserFixture(t)
	admin, student := adminAndStudent(t, db)

	c, recorder := newTestContext(t, http.MethodPost, "/api/admin/users/"+student.ID+"/impersonate", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: student.ID}}
	c.Set(middleware.CtxUserIDKey, admin.ID)
	handler.Impersonate(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var data struct {
		Tokens    tokenResponse `json:"tokens"`
		ExpiresAt time.Time     `json:"expires_at"`
	}
	decodeData(t, recorder, &data)
	require.NotEmpty(t, data.Tokens.AccessToken)
	require.WithinDuration(t, time.Now().Add(iauth.ImpersonationTTL), data.ExpiresAt, time.Minute)

	var session models.Session
	require.NoError(t, db.First(&session, "user_id = ?", student.ID).Error)
	require.NotNil(t, session.ImpersonatorID)
	require.Equal(t, admin.ID, *session.ImpersonatorID)

	// ending impersonation revokes the session
	c2, recorder2 := newTestContext(t, http.MethodPost, "/api/admin/stop-impersonating", nil)
	c2.Set(middleware.CtxSessionIDKey, session.ID)
	c2.Set(middleware.CtxImpersonatorKey, admin.ID)
	handler.StopImpersonating(c2)
	require.Equal(t, http.StatusOK, recorder2.Code)

	require.NoError(t, db.First(&session, "id = ?", session.ID).Error)
	require.NotNil(t, session.RevokedAt)
}

func TestUserHandlerImpersonateRejectsAdminTarget(t *testing.T) {
	handler, db := newUserFixture(t)
	admin, _ := adminAndStudent(t, db)
	other := models.User{Username: "root2", Email: "root2@example.com", Password: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&other).Error)

	c, recorder := newTestContext(t, http.MethodPost, "/api/admin/users/"+other.ID+"/impersonate", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: other.ID}}
	c.Set(middleware.CtxUserIDKey, admin.ID)
	handler.Impersonate(c)
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestUserHandlerImpersonateRejectsBannedTarget(t *testing.T) {
	handler, db := newUserFixture(t)
	admin, student := adminAndStudent(t, db)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", student.ID).Update("banned", true).Error)

	c, recorder := newTestContext(t, http.MethodPost, "/api/admin/users/"+student.ID+"/impersonate", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: student.ID}}
	c.Set(middleware.CtxUserIDKey, admin.ID)
	handler.Impersonate(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUserHandlerStopImpersonatingRequiresImpersonation(t *testing.T) {
	handler, db := newUserFixture(t)
	admin, _ := adminAndStudent(t, db)

	c, recorder := newTestContext(t, http.MethodPost, "/api/admin/stop-impersonating", nil)
	c.Set(middleware.CtxUserIDKey, admin.ID)
	c.Set(middleware.CtxSessionIDKey, "sess-1")
	handler.StopImpersonating(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUserHandlerDelete(t *testing.T) {
	handler, db := newUserFixture(t)
	admin, student := adminAndStudent(t, db)

	c, recorder := newTestContext(t, http.MethodDelete, "/api/admin/users/"+student.ID, nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: student.ID}}
	c.Set(middleware.CtxUserIDKey, admin.ID)
	handler.Delete(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", student.ID).Count(&count).Error)
	require.Zero(t, count)
}
