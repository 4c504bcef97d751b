package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillpix/skillpix-server/internal/database/testutil"
	"github.com/skillpix/skillpix-server/internal/models"
	apperrors "github.com/skillpix/skillpix-server/pkg/errors"
)

func newNotificationService(t *testing.T) *NotificationService {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	for _, owner := range []models.User{
		{ID: "user-1", Username: "user-1", Email: "user-1@example.com", Password: "hashed"},
		{ID: "user-2", Username: "user-2", Email: "user-2@example.com", Password: "hashed"},
	} {
		owner := owner
		require.NoError(t, db.Create(&owner).Error)
	}
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)
	return svc
}

func seedNotification(t *testing.T, svc *NotificationService, input CreateNotificationInput) *NotificationDTO {
	t.Helper()
	dto, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	return dto
}

func TestNotificationServiceCreateDefaults(t *testing.T) {
	svc := newNotificationService(t)

	dto := seedNotification(t, svc, CreateNotificationInput{
		UserID:  "user-1",
		Title:   "Welcome",
		Message: "Your account is ready",
	})

	require.NotEmpty(t, dto.ID)
	require.Equal(t, "info", dto.Type)
	require.Equal(t, "general", dto.Category)
	require.Equal(t, "medium", dto.Priority)
	require.False(t, dto.IsRead)
	require.Nil(t, dto.ReadAt)
}

func TestNotificationServiceCreateRejectsUnknownType(t *testing.T) {
	svc := newNotificationService(t)

	_, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID:  "user-1",
		Title:   "Broken",
		Message: "nope",
		Type:    "shouting",
	})
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	require.Equal(t, 400, appErr.StatusCode)

	_, err = svc.Create(context.Background(), CreateNotificationInput{
		UserID:   "user-1",
		Title:    "Broken",
		Message:  "nope",
		Priority: "extreme",
	})
	require.Error(t, err)
}

func TestNotificationServiceCreatePersistsMetadata(t *testing.T) {
	svc := newNotificationService(t)

	dto := seedNotification(t, svc, CreateNotificationInput{
		UserID:   "user-1",
		Title:    "Badge earned",
		Message:  "You unlocked a badge",
		Type:     "achievement",
		Category: "achievements",
		Metadata: map[string]any{"badge": "go-master"},
	})

	page, err := svc.List(context.Background(), ListNotificationsInput{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, dto.ID, page.Items[0].ID)
	require.Equal(t, "go-master", page.Items[0].Metadata["badge"])
}

func TestNotificationServiceListFilters(t *testing.T) {
	svc := newNotificationService(t)

	seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "System maintenance", Message: "Scheduled downtime tonight", Type: "system"})
	seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "Course update", Message: "New lesson available", Type: "info", Category: "courses"})
	seedNotification(t, svc, CreateNotificationInput{UserID: "user-2", Title: "Other user", Message: "Should not leak", Type: "system"})

	page, err := svc.List(context.Background(), ListNotificationsInput{UserID: "user-1", Type: "system"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "System maintenance", page.Items[0].Title)
	require.EqualValues(t, 1, page.Total)

	page, err = svc.List(context.Background(), ListNotificationsInput{UserID: "user-1", Category: "courses"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "Course update", page.Items[0].Title)

	page, err = svc.List(context.Background(), ListNotificationsInput{UserID: "user-1", Search: "DOWNTIME"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "System maintenance", page.Items[0].Title)

	page, err = svc.List(context.Background(), ListNotificationsInput{UserID: "user-1"})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
	require.EqualValues(t, 2, page.UnreadCount)
}

func TestNotificationServiceListPagination(t *testing.T) {
	svc := newNotificationService(t)
	for i := 0; i < 5; i++ {
		seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "Item", Message: "payload"})
	}

	page, err := svc.List(context.Background(), ListNotificationsInput{UserID: "user-1", Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.EqualValues(t, 5, page.Total)

	page, err = svc.List(context.Background(), ListNotificationsInput{UserID: "user-1", Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

func TestNotificationServiceUpdateFlagsTracksReadAt(t *testing.T) {
	svc := newNotificationService(t)
	dto := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "Read me", Message: "then unread me"})

	read := true
	updated, err := svc.UpdateFlags(context.Background(), "user-1", dto.ID, UpdateFlagsInput{IsRead: &read})
	require.NoError(t, err)
	require.True(t, updated.IsRead)
	require.NotNil(t, updated.ReadAt)

	unread := false
	updated, err = svc.UpdateFlags(context.Background(), "user-1", dto.ID, UpdateFlagsInput{IsRead: &unread})
	require.NoError(t, err)
	require.False(t, updated.IsRead)
	require.Nil(t, updated.ReadAt)
}

func TestNotificationServiceUpdateFlagsStarAndArchive(t *testing.T) {
	svc := newNotificationService(t)
	dto := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "Flag me", Message: "payload"})

	starred := true
	archived := true
	updated, err := svc.UpdateFlags(context.Background(), "user-1", dto.ID, UpdateFlagsInput{IsStarred: &starred, IsArchived: &archived})
	require.NoError(t, err)
	require.True(t, updated.IsStarred)
	require.True(t, updated.IsArchived)
	require.False(t, updated.IsRead)
}

func TestNotificationServiceUpdateFlagsAlwaysBumpsUpdatedAt(t *testing.T) {
	svc := newNotificationService(t)
	dto := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "Touch me", Message: "payload"})

	later := time.Now().Add(time.Hour).UTC()
	svc.now = func() time.Time { return later }

	// Flag already holds the requested value.
	unread := false
	updated, err := svc.UpdateFlags(context.Background(), "user-1", dto.ID, UpdateFlagsInput{IsRead: &unread})
	require.NoError(t, err)
	require.WithinDuration(t, later, updated.UpdatedAt, time.Second)

	var row models.Notification
	require.NoError(t, svc.db.First(&row, "id = ?", dto.ID).Error)
	require.WithinDuration(t, later, row.UpdatedAt, time.Second)
	require.False(t, row.IsRead)
	require.Nil(t, row.ReadAt)
}

func TestNotificationServiceUpdateFlagsWrongOwner(t *testing.T) {
	svc := newNotificationService(t)
	dto := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "Private", Message: "payload"})

	read := true
	_, err := svc.UpdateFlags(context.Background(), "user-2", dto.ID, UpdateFlagsInput{IsRead: &read})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationServiceDelete(t *testing.T) {
	svc := newNotificationService(t)
	dto := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "Gone soon", Message: "payload"})

	require.NoError(t, svc.Delete(context.Background(), "user-1", dto.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), "user-1", dto.ID), apperrors.ErrNotFound)
}

func TestNotificationServiceBulkUpdateCountsMatchedRows(t *testing.T) {
	svc := newNotificationService(t)

	a := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "a", Message: "payload"})
	b := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "b", Message: "payload"})
	other := seedNotification(t, svc, CreateNotificationInput{UserID: "user-2", Title: "c", Message: "payload"})

	count, err := svc.BulkUpdate(context.Background(), BulkUpdateInput{
		IDs:    []string{a.ID, b.ID, other.ID},
		Action: BulkActionArchive,
		UserID: "user-1",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	page, err := svc.List(context.Background(), ListNotificationsInput{UserID: "user-2"})
	require.NoError(t, err)
	require.False(t, page.Items[0].IsArchived)
}

func TestNotificationServiceBulkUpdateSkipsMissingIDs(t *testing.T) {
	svc := newNotificationService(t)

	a := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "a", Message: "payload"})
	b := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "b", Message: "payload"})
	require.NoError(t, svc.Delete(context.Background(), "user-1", b.ID))

	count, err := svc.BulkUpdate(context.Background(), BulkUpdateInput{
		IDs:    []string{a.ID, b.ID},
		Action: BulkActionRead,
		UserID: "user-1",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	page, err := svc.List(context.Background(), ListNotificationsInput{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.True(t, page.Items[0].IsRead)
	require.NotNil(t, page.Items[0].ReadAt)
}

func TestNotificationServiceBulkUpdateRejectsBadInput(t *testing.T) {
	svc := newNotificationService(t)

	_, err := svc.BulkUpdate(context.Background(), BulkUpdateInput{Action: BulkActionRead})
	require.Error(t, err)

	_, err = svc.BulkUpdate(context.Background(), BulkUpdateInput{IDs: []string{"some-id"}, Action: "explode"})
	require.Error(t, err)
}

func TestNotificationServiceBulkDelete(t *testing.T) {
	svc := newNotificationService(t)

	a := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "a", Message: "payload"})
	b := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "b", Message: "payload"})
	other := seedNotification(t, svc, CreateNotificationInput{UserID: "user-2", Title: "c", Message: "payload"})

	count, err := svc.BulkDelete(context.Background(), []string{a.ID, b.ID, other.ID}, "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	page, err := svc.List(context.Background(), ListNotificationsInput{UserID: "user-2"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

func TestNotificationServiceMarkAllRead(t *testing.T) {
	svc := newNotificationService(t)

	seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "a", Message: "payload"})
	seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "b", Message: "payload"})
	seedNotification(t, svc, CreateNotificationInput{UserID: "user-2", Title: "c", Message: "payload"})

	require.NoError(t, svc.MarkAllRead(context.Background(), "user-1"))

	page, err := svc.List(context.Background(), ListNotificationsInput{UserID: "user-1"})
	require.NoError(t, err)
	require.EqualValues(t, 0, page.UnreadCount)
	for _, item := range page.Items {
		require.True(t, item.IsRead)
		require.NotNil(t, item.ReadAt)
	}

	page, err = svc.List(context.Background(), ListNotificationsInput{UserID: "user-2"})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.UnreadCount)
}

func TestNotificationServicePurgeExpired(t *testing.T) {
	svc := newNotificationService(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "stale", Message: "payload", ExpiresAt: &past})
	seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "fresh", Message: "payload", ExpiresAt: &future})
	seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "forever", Message: "payload"})

	count, err := svc.PurgeExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	page, err := svc.List(context.Background(), ListNotificationsInput{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
}

func TestNotificationServiceNotificationModel(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	owner := models.User{ID: "user-1", Username: "user-1", Email: "user-1@example.com", Password: "hashed"}
	require.NoError(t, db.Create(&owner).Error)

	dto := seedNotification(t, svc, CreateNotificationInput{UserID: "user-1", Title: "raw", Message: "payload"})

	var row models.Notification
	require.NoError(t, db.First(&row, "id = ?", dto.ID).Error)
	require.Equal(t, "user-1", row.UserID)
	require.False(t, row.IsRead)
}
