package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillpix/skillpix-server/internal/services"
	"github.com/skillpix/skillpix-server/pkg/response"
)

// ContactHandler serves the public contact form and the admin contact inbox.
type ContactHandler struct {
	service *services.ContactService
}

func NewContactHandler(service *services.ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=128"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"max=255"`
	Message string `json:"message" validate:"required,max=5000"`
}

// Submit accepts a contact form submission.
//
// POST /api/contact
func (h *ContactHandler) Submit(c *gin.Context) {
	var req contactRequest
	if !bindAndValidate(c, &req) {
		return
	}

	dto, err := h.service.Submit(requestContext(c), services.SubmitContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"id": dto.ID, "received": true})
}

// List returns contact messages for the admin inbox.
//
// GET /api/admin/contact?resolved=&page=&limit=
func (h *ContactHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 25)

	result, err := h.service.List(requestContext(c), services.ListContactInput{
		Resolved: parseBoolQuery(c, "resolved"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"messages": result.Items}, paginationMeta(page, limit, result.Total))
}

// MarkResolved flags a contact message as handled.
//
// PATCH /api/admin/contact/:id/resolve
func (h *ContactHandler) MarkResolved(c *gin.Context) {
	dto, err := h.service.MarkResolved(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}
