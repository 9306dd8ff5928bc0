package middleware

import (
	"strings"

	"github.com/adforge/core/internal/pkg/jwt"
	"github.com/adforge/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// ContextKeyUserID is the gin context key holding the authenticated user id.
const ContextKeyUserID = "user_id"

// Auth returns a middleware that enforces service-token authentication. The
// excluded CRUD layer calls this core with a signed token carrying the end
// user it is acting for.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.Parse(extractToken(c))
		if err != nil || claims.UserID == "" {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id from the context.
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func extractToken(c *gin.Context) string {
	if token := NormalizeToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken strips the Bearer prefix and surrounding whitespace.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}
	return token
}
