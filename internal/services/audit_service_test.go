package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillpix/skillpix-server/internal/database/testutil"
	"github.com/skillpix/skillpix-server/internal/models"
)

func TestAuditServiceLogAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	admin := seedUser(t, db, models.User{Username: "root", Email: "root@example.com", Role: models.RoleAdmin})

	require.NoError(t, svc.Log(context.Background(), AuditEntry{
		ActorID:  &admin.ID,
		Action:   "user.ban",
		Resource: "user-123",
		Result:   "ok",
		Metadata: map[string]any{"reason": "abuse"},
	}))
	require.NoError(t, svc.Log(context.Background(), AuditEntry{
		Action:   "user.ban",
		Resource: "user-456",
		Result:   "denied",
	}))

	logs, total, err := svc.List(context.Background(), AuditListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, logs, 2)

	logs, total, err = svc.List(context.Background(), AuditListOptions{
		Filters: AuditFilters{Result: "ok"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "user-123", logs[0].Resource)
	require.NotNil(t, logs[0].ActorID)
	require.Contains(t, logs[0].Metadata, "abuse")
}

func TestAuditServiceLogRequiresAction(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	require.Error(t, svc.Log(context.Background(), AuditEntry{Result: "ok"}))
	require.Error(t, svc.Log(context.Background(), AuditEntry{Action: "user.ban"}))
}
