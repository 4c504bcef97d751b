package api

import (
	"github.com/gin-gonic/gin"

	"github.com/skillpix/skillpix-server/internal/handlers"
)

func registerContactRoutes(r *gin.Engine, handler *handlers.ContactHandler, _ gin.HandlerFunc) {
	// The contact form is the one unauthenticated write endpoint.
	r.POST("/api/contact", handler.Submit)
}
