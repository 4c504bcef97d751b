package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skillpix/skillpix-server/internal/database/testutil"
	"github.com/skillpix/skillpix-server/internal/models"
	apperrors "github.com/skillpix/skillpix-server/pkg/errors"
)

type fakeRevoker struct {
	revoked []string
}

func (f *fakeRevoker) RevokeUserSessions(userID string) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

func newUserService(t *testing.T) (*UserService, *gorm.DB, *fakeRevoker) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	revoker := &fakeRevoker{}
	svc, err := NewUserService(db, revoker, nil)
	require.NoError(t, err)
	return svc, db, revoker
}

func seedUser(t *testing.T, db *gorm.DB, user models.User) models.User {
	t.Helper()
	if user.Password == "" {
		user.Password = "hashed"
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestUserServiceListFilters(t *testing.T) {
	svc, db, _ := newUserService(t)

	seedUser(t, db, models.User{Username: "alice", Email: "alice@example.com", Institution: "Riverside High"})
	seedUser(t, db, models.User{Username: "bob", Email: "bob@example.com", Institution: "Hillcrest Academy", Banned: true})
	seedUser(t, db, models.User{Username: "carol", Email: "carol@example.com", Role: models.RoleAdmin})

	page, err := svc.List(context.Background(), ListUsersInput{Query: "riverside"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "alice", page.Items[0].Username)

	banned := true
	page, err = svc.List(context.Background(), ListUsersInput{Banned: &banned})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "bob", page.Items[0].Username)

	page, err = svc.List(context.Background(), ListUsersInput{Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "carol", page.Items[0].Username)

	page, err = svc.List(context.Background(), ListUsersInput{})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
}

func TestUserServiceGetByIDCountsSessions(t *testing.T) {
	svc, db, _ := newUserService(t)
	user := seedUser(t, db, models.User{Username: "alice", Email: "alice@example.com", EnrolledCourses: "go-101, algo-201"})

	active := models.Session{UserID: user.ID, RefreshToken: "tok-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.Create(&active).Error)
	expired := models.Session{UserID: user.ID, RefreshToken: "tok-2", ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(&expired).Error)

	dto, err := svc.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, dto.ActiveSessions)
	require.Equal(t, []string{"go-101", "algo-201"}, dto.EnrolledCourses)

	_, err = svc.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserServiceUpdateProfile(t *testing.T) {
	svc, db, _ := newUserService(t)
	user := seedUser(t, db, models.User{Username: "alice", Email: "alice@example.com"})

	first := "Alice"
	institution := "Riverside High"
	dto, err := svc.Update(context.Background(), user.ID, UpdateUserInput{
		FirstName:   &first,
		Institution: &institution,
	})
	require.NoError(t, err)
	require.Equal(t, "Alice", dto.FirstName)
	require.Equal(t, "Riverside High", dto.Institution)
	require.Equal(t, "alice", dto.Username)
}

func TestUserServiceBanRevokesSessions(t *testing.T) {
	svc, db, revoker := newUserService(t)
	admin := seedUser(t, db, models.User{Username: "root", Email: "root@example.com", Role: models.RoleAdmin})
	user := seedUser(t, db, models.User{Username: "alice", Email: "alice@example.com"})

	week := 7 * 24 * time.Hour
	dto, err := svc.Ban(context.Background(), admin.ID, user.ID, BanUserInput{
		Reason:   "abuse",
		Duration: &week,
	})
	require.NoError(t, err)
	require.True(t, dto.Banned)
	require.Equal(t, "abuse", dto.BanReason)
	require.NotNil(t, dto.BanExpires)
	require.Equal(t, []string{user.ID}, revoker.revoked)

	var row models.User
	require.NoError(t, db.First(&row, "id = ?", user.ID).Error)
	require.True(t, row.IsBanned(time.Now()))
	require.False(t, row.IsBanned(time.Now().Add(8*24*time.Hour)))
}

func TestUserServiceBanRejectsAdminTarget(t *testing.T) {
	svc, db, revoker := newUserService(t)
	admin := seedUser(t, db, models.User{Username: "root", Email: "root@example.com", Role: models.RoleAdmin})
	other := seedUser(t, db, models.User{Username: "root2", Email: "root2@example.com", Role: models.RoleAdmin})

	_, err := svc.Ban(context.Background(), admin.ID, other.ID, BanUserInput{Reason: "nope"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	require.Empty(t, revoker.revoked)
}

func TestUserServiceUnban(t *testing.T) {
	svc, db, _ := newUserService(t)
	admin := seedUser(t, db, models.User{Username: "root", Email: "root@example.com", Role: models.RoleAdmin})
	expires := time.Now().Add(time.Hour)
	user := seedUser(t, db, models.User{Username: "alice", Email: "alice@example.com", Banned: true, BanReason: "abuse", BanExpires: &expires})

	dto, err := svc.Unban(context.Background(), admin.ID, user.ID)
	require.NoError(t, err)
	require.False(t, dto.Banned)
	require.Empty(t, dto.BanReason)
	require.Nil(t, dto.BanExpires)
}

func TestUserServiceSetRole(t *testing.T) {
	svc, db, _ := newUserService(t)
	admin := seedUser(t, db, models.User{Username: "root", Email: "root@example.com", Role: models.RoleAdmin})
	user := seedUser(t, db, models.User{Username: "alice", Email: "alice@example.com"})

	dto, err := svc.SetRole(context.Background(), admin.ID, user.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, dto.Role)

	_, err = svc.SetRole(context.Background(), admin.ID, user.ID, "superuser")
	require.Error(t, err)

	_, err = svc.SetRole(context.Background(), admin.ID, admin.ID, models.RoleUser)
	require.Error(t, err)
}

func TestUserServiceDeleteCascades(t *testing.T) {
	svc, db, revoker := newUserService(t)
	admin := seedUser(t, db, models.User{Username: "root", Email: "root@example.com", Role: models.RoleAdmin})
	user := seedUser(t, db, models.User{Username: "alice", Email: "alice@example.com"})

	require.NoError(t, db.Create(&models.Notification{UserID: user.ID, Title: "hi", Message: "there"}).Error)
	require.NoError(t, db.Create(&models.Session{UserID: user.ID, RefreshToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}).Error)

	require.NoError(t, svc.Delete(context.Background(), admin.ID, user.ID))
	require.Equal(t, []string{user.ID}, revoker.revoked)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.Session{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)

	require.ErrorIs(t, svc.Delete(context.Background(), admin.ID, admin.ID), apperrors.ErrForbidden)
}
