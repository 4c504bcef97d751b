package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/skillpix/skillpix-server/internal/services"
	"github.com/skillpix/skillpix-server/pkg/response"
)

// AnalyticsHandler serves the admin analytics snapshot.
type AnalyticsHandler struct {
	service *services.AnalyticsService
}

func NewAnalyticsHandler(db *gorm.DB) (*AnalyticsHandler, error) {
	service, err := services.NewAnalyticsService(db)
	if err != nil {
		return nil, err
	}
	return &AnalyticsHandler{service: service}, nil
}

// Summary returns the aggregated platform statistics.
//
// GET /api/admin/analytics
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}
