package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kubap159863/DcBot/internal/auth"
	"github.com/kubap159863/DcBot/pkg/response"
)

const (
	// ContextUser is the key for the authenticated user in gin context.
	ContextUser = "user"
	// ContextUserRole is the key for the user role in gin context.
	ContextUserRole = "user_role"
)

// JWT returns a middleware that validates a bearer token and sets the
// claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUser, claims.User)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}
