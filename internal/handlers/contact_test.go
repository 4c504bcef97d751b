package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/skillpix/skillpix-server/internal/database/testutil"
	"github.com/skillpix/skillpix-server/internal/services"
)

func newContactFixture(t *testing.T) *ContactHandler {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	service, err := services.NewContactService(db, nil, "", nil)
	require.NoError(t, err)
	return NewContactHandler(service)
}

func TestContactHandlerSubmit(t *testing.T) {
	handler := newContactFixture(t)

	c, recorder := newTestContext(t, http.MethodPost, "/api/contact", contactRequest{
		Name:    "Alice",
		Email:   "alice@example.com",
		Subject: "Courses",
		Message: "How do I enroll?",
	})
	handler.Submit(c)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var data struct {
		ID       string `json:"id"`
		Received bool   `json:"received"`
	}
	decodeData(t, recorder, &data)
	require.NotEmpty(t, data.ID)
	require.True(t, data.Received)
}

func TestContactHandlerSubmitValidation(t *testing.T) {
	handler := newContactFixture(t)

	c, recorder := newTestContext(t, http.MethodPost, "/api/contact", contactRequest{
		Name:  "Alice",
		Email: "not-an-email",
	})
	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestContactHandlerListAndResolve(t *testing.T) {
	handler := newContactFixture(t)

	c, _ := newTestContext(t, http.MethodPost, "/api/contact", contactRequest{
		Name:    "Bob",
		Email:   "bob@example.com",
		Message: "Hello",
	})
	handler.Submit(c)

	c2, recorder2 := newTestContext(t, http.MethodGet, "/api/admin/contact", nil)
	handler.List(c2)
	require.Equal(t, http.StatusOK, recorder2.Code)

	var data struct {
		Messages []services.ContactMessageDTO `json:"messages"`
	}
	decodeData(t, recorder2, &data)
	require.Len(t, data.Messages, 1)

	c3, recorder3 := newTestContext(t, http.MethodPatch, "/api/admin/contact/"+data.Messages[0].ID+"/resolve", nil)
	c3.Params = gin.Params{gin.Param{Key: "id", Value: data.Messages[0].ID}}
	handler.MarkResolved(c3)
	require.Equal(t, http.StatusOK, recorder3.Code)

	var dto services.ContactMessageDTO
	decodeData(t, recorder3, &dto)
	require.True(t, dto.Resolved)
}
