package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lab-asset-api/internal/models"
	appErrors "github.com/noah-isme/lab-asset-api/pkg/errors"
	"github.com/noah-isme/lab-asset-api/pkg/response"
)

// RequireRoles lets the request through only when the JWT carries one of roles.
// It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation"))
		c.Abort()
	}
}
