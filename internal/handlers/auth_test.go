package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/skillpix/skillpix-server/internal/auth"
	"github.com/skillpix/skillpix-server/internal/database/testutil"
	"github.com/skillpix/skillpix-server/internal/middleware"
	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/pkg/crypto"
)

func newAuthFixture(t *testing.T) (*AuthHandler, *gorm.DB) {
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

	return NewAuthHandler(db, sessions), db
}

func createAccount(t *testing.T, db *gorm.DB, username, password string, banned bool) models.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
		Role:     models.RoleUser,
		Banned:   banned,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	handler, db := newAuthFixture(t)
	createAccount(t, db, "alice", "correct horse", false)

	c, recorder := newTestContext(t, http.MethodPost, "/api/auth/login", loginRequest{
		Identifier: "alice",
		Password:   "correct horse",
	})
	handler.Login(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var data struct {
		Tokens tokenResponse `json:"tokens"`
	}
	decodeData(t, recorder, &data)
	require.NotEmpty(t, data.Tokens.AccessToken)
	require.NotEmpty(t, data.Tokens.RefreshToken)

	var row models.User
	require.NoError(t, db.First(&row, "username = ?", "alice").Error)
	require.NotNil(t, row.LastLoginAt)
}

func TestAuthHandlerLoginByEmail(t *testing.T) {
	handler, db := newAuthFixture(t)
	createAccount(t, db, "alice", "correct horse", false)

	c, recorder := newTestContext(t, http.MethodPost, "/api/auth/login", loginRequest{
		Identifier: "ALICE@example.com",
		Password:   "correct horse",
	})
	handler.Login(c)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	handler, db := newAuthFixture(t)
	createAccount(t, db, "alice", "correct horse", false)

	c, recorder := newTestContext(t, http.MethodPost, "/api/auth/login", loginRequest{
		Identifier: "alice",
		Password:   "wrong",
	})
	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAuthHandlerLoginBannedAccount(t *testing.T) {
	handler, db := newAuthFixture(t)
	createAccount(t, db, "alice", "correct horse", true)

	c, recorder := newTestContext(t, http.MethodPost, "/api/auth/login", loginRequest{
		Identifier: "alice",
		Password:   "correct horse",
	})
	handler.Login(c)
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestAuthHandlerRefreshRotatesTokens(t *testing.T) {
	handler, db := newAuthFixture(t)
	user := createAccount(t, db, "alice", "correct horse", false)

	pair, _, err := handler.sessions.CreateSession(&user, iauth.SessionMetadata{})
	require.NoError(t, err)

	c, recorder := newTestContext(t, http.MethodPost, "/api/auth/refresh", refreshRequest{
		RefreshToken: pair.RefreshToken,
	})
	handler.Refresh(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var tokens tokenResponse
	decodeData(t, recorder, &tokens)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEqual(t, pair.RefreshToken, tokens.RefreshToken)

	// old refresh token is no longer valid
	c2, recorder2 := newTestContext(t, http.MethodPost, "/api/auth/refresh", refreshRequest{
		RefreshToken: pair.RefreshToken,
	})
	handler.Refresh(c2)
	require.Equal(t, http.StatusUnauthorized, recorder2.Code)
}

func TestAuthHandlerLogoutRevokesSession(t *testing.T) {
	handler, db := newAuthFixture(t)
	user := createAccount(t, db, "alice", "correct horse", false)

	pair, session, err := handler.sessions.CreateSession(&user, iauth.SessionMetadata{})
	require.NoError(t, err)

	c, recorder := newTestContext(t, http.MethodPost, "/api/auth/logout", nil)
	c.Set(middleware.CtxSessionIDKey, session.ID)
	handler.Logout(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	c2, recorder2 := newTestContext(t, http.MethodPost, "/api/auth/refresh", refreshRequest{
		RefreshToken: pair.RefreshToken,
	})
	handler.Refresh(c2)
	require.Equal(t, http.StatusUnauthorized, recorder2.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	handler, db := newAuthFixture(t)
	user := createAccount(t, db, "alice", "correct horse", false)

	c, recorder := newTestContext(t, http.MethodGet, "/api/auth/me", nil)
	c.Set(middleware.CtxUserIDKey, user.ID)
	handler.Me(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var data map[string]any
	decodeData(t, recorder, &data)
	require.Equal(t, "alice", data["username"])
	require.NotContains(t, data, "impersonator_id")
}
