package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillpix/skillpix-server/internal/database/testutil"
	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/internal/services"
)

func TestAnalyticsHandlerSummary(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	handler, err := NewAnalyticsHandler(db)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.User{
		Username: "alice", Email: "alice@example.com", Password: "x",
		Institution: "Riverside High", AchievementCount: 4,
	}).Error)

	c, recorder := newTestContext(t, http.MethodGet, "/api/admin/analytics", nil)
	handler.Summary(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	var summary services.AnalyticsSummary
	decodeData(t, recorder, &summary)
	require.EqualValues(t, 1, summary.TotalUsers)
	require.Equal(t, "Riverside High", summary.TopInstitutions[0].Institution)
}
