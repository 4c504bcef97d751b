package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/skillpix/skillpix-server/internal/database/testutil"
	"github.com/skillpix/skillpix-server/internal/middleware"
	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/internal/notifications"
	"github.com/skillpix/skillpix-server/internal/services"
	"github.com/skillpix/skillpix-server/pkg/response"
)

func testContext() context.Context {
	return context.Background()
}

func newTestContext(t *testing.T, method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, recorder
}

func decodeData(t *testing.T, recorder *httptest.ResponseRecorder, dest any) response.Response {
	t.Helper()
	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	if dest != nil {
		encoded, err := json.Marshal(payload.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(encoded, dest))
	}
	return payload
}

func TestNotificationHandlerListAndUpdate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	hub := notifications.NewHub()
	handler, err := NewNotificationHandler(db, hub, nil)
	require.NoError(t, err)

	user := models.User{Username: "dana", Email: "dana@example.com", Password: "secret"}
	require.NoError(t, db.Create(&user).Error)

	_, err = handler.service.Create(testContext(), services.CreateNotificationInput{
		UserID:  user.ID,
		Title:   "Badge earned",
		Message: "You unlocked a badge",
		Type:    "achievement",
	})
	require.NoError(t, err)

	c, recorder := newTestContext(t, http.MethodGet, "/api/notifications?type=achievement", nil)
	c.Set(middleware.CtxUserIDKey, user.ID)
	handler.List(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var data struct {
		Notifications []services.NotificationDTO `json:"notifications"`
		UnreadCount   int64                      `json:"unread_count"`
	}
	payload := decodeData(t, recorder, &data)
	require.True(t, payload.Success)
	require.Len(t, data.Notifications, 1)
	require.EqualValues(t, 1, data.UnreadCount)
	require.NotNil(t, payload.Meta)
	require.Equal(t, 1, payload.Meta.Total)

	notificationID := data.Notifications[0].ID

	read := true
	c2, recorder2 := newTestContext(t, http.MethodPatch, "/api/notifications/"+notificationID, updateNotificationRequest{IsRead: &read})
	c2.Params = gin.Params{gin.Param{Key: "id", Value: notificationID}}
	c2.Set(middleware.CtxUserIDKey, user.ID)
	handler.Update(c2)
	require.Equal(t, http.StatusOK, recorder2.Code)

	var dto services.NotificationDTO
	decodeData(t, recorder2, &dto)
	require.True(t, dto.IsRead)
	require.NotNil(t, dto.ReadAt)
}

func TestNotificationHandlerListSearchParam(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewNotificationHandler(db, notifications.NewHub(), nil)
	require.NoError(t, err)

	user := models.User{Username: "dana", Email: "dana@example.com", Password: "secret"}
	require.NoError(t, db.Create(&user).Error)

	for _, title := range []string{"Badge earned", "Course reminder"} {
		_, err = handler.service.Create(testContext(), services.CreateNotificationInput{
			UserID:  user.ID,
			Title:   title,
			Message: "payload",
		})
		require.NoError(t, err)
	}

	var data struct {
		Notifications []services.NotificationDTO `json:"notifications"`
	}

	c, recorder := newTestContext(t, http.MethodGet, "/api/notifications?search=badge", nil)
	c.Set(middleware.CtxUserIDKey, user.ID)
	handler.List(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	decodeData(t, recorder, &data)
	require.Len(t, data.Notifications, 1)
	require.Equal(t, "Badge earned", data.Notifications[0].Title)

	// legacy alias
	c2, recorder2 := newTestContext(t, http.MethodGet, "/api/notifications?q=reminder", nil)
	c2.Set(middleware.CtxUserIDKey, user.ID)
	handler.List(c2)
	require.Equal(t, http.StatusOK, recorder2.Code)
	decodeData(t, recorder2, &data)
	require.Len(t, data.Notifications, 1)
	require.Equal(t, "Course reminder", data.Notifications[0].Title)
}

func TestNotificationHandlerCreateForbidsCrossUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewNotificationHandler(db, notifications.NewHub(), nil)
	require.NoError(t, err)

	target := models.User{ID: "someone-else", Username: "someone-else", Email: "someone-else@example.com", Password: "secret"}
	require.NoError(t, db.Create(&target).Error)

	c, recorder := newTestContext(t, http.MethodPost, "/api/notifications", createNotificationRequest{
		UserID:  "someone-else",
		Title:   "Sneaky",
		Message: "not allowed",
	})
	c.Set(middleware.CtxUserIDKey, "user-1")
	c.Set(middleware.CtxRoleKey, models.RoleUser)
	handler.Create(c)
	require.Equal(t, http.StatusForbidden, recorder.Code)

	c2, recorder2 := newTestContext(t, http.MethodPost, "/api/notifications", createNotificationRequest{
		UserID:  "someone-else",
		Title:   "Admin note",
		Message: "allowed",
	})
	c2.Set(middleware.CtxUserIDKey, "admin-1")
	c2.Set(middleware.CtxRoleKey, models.RoleAdmin)
	handler.Create(c2)
	require.Equal(t, http.StatusCreated, recorder2.Code)
}

func TestNotificationHandlerBulkUpdate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewNotificationHandler(db, notifications.NewHub(), nil)
	require.NoError(t, err)

	owner := models.User{ID: "user-1", Username: "user-1", Email: "user-1@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)

	first, err := handler.service.Create(testContext(), services.CreateNotificationInput{
		UserID: "user-1", Title: "a", Message: "m",
	})
	require.NoError(t, err)
	second, err := handler.service.Create(testContext(), services.CreateNotificationInput{
		UserID: "user-1", Title: "b", Message: "m",
	})
	require.NoError(t, err)
	require.NoError(t, handler.service.Delete(testContext(), "user-1", second.ID))

	c, recorder := newTestContext(t, http.MethodPatch, "/api/notifications/bulk", bulkUpdateRequest{
		IDs:    []string{first.ID, second.ID},
		Action: "read",
	})
	c.Set(middleware.CtxUserIDKey, "user-1")
	handler.BulkUpdate(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var data struct {
		UpdatedCount int64 `json:"updated_count"`
	}
	decodeData(t, recorder, &data)
	require.EqualValues(t, 1, data.UpdatedCount)
}

func TestNotificationHandlerBulkUpdateRejectsUnknownAction(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewNotificationHandler(db, notifications.NewHub(), nil)
	require.NoError(t, err)

	c, recorder := newTestContext(t, http.MethodPatch, "/api/notifications/bulk", bulkUpdateRequest{
		IDs:    []string{"some-id"},
		Action: "explode",
	})
	c.Set(middleware.CtxUserIDKey, "user-1")
	handler.BulkUpdate(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestNotificationHandlerRequiresAuth(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewNotificationHandler(db, notifications.NewHub(), nil)
	require.NoError(t, err)

	c, recorder := newTestContext(t, http.MethodGet, "/api/notifications", nil)
	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
