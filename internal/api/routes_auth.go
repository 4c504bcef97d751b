package api

import (
	"github.com/gin-gonic/gin"

	"github.com/skillpix/skillpix-server/internal/handlers"
)

func registerAuthRoutes(r *gin.Engine, handler *handlers.AuthHandler, requireAuth gin.HandlerFunc) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", handler.Login)
		auth.POST("/refresh", handler.Refresh)

		auth.POST("/logout", requireAuth, handler.Logout)
		auth.GET("/me", requireAuth, handler.Me)
	}
}
