package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/skillpix/skillpix-server/internal/models"
	"github.com/skillpix/skillpix-server/pkg/errors"
	"github.com/skillpix/skillpix-server/pkg/response"
)

// RequireAdmin allows only requests whose access token carries the admin
// role. Impersonated sessions inherit the target's role, so an admin acting
// as a student is kept out of the back office.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRoleKey) != models.RoleAdmin {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
