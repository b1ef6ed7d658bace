package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gigstage/settlement_api/internal/utils"
)

// JWTMiddleware guards the admin settlement surface. Tokens come from the
// admin login endpoint; the SSE stream validates its query-param token
// itself because EventSource cannot set headers.
type JWTMiddleware struct{}

func NewJWTMiddleware() *JWTMiddleware {
	return &JWTMiddleware{}
}

func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			utils.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Admin token required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(token)
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired admin token")
			c.Abort()
			return
		}

		c.Set("admin_id", claims.UserID)
		c.Set("admin_email", claims.Email)
		c.Next()
	}
}

// bearerToken extracts the credential from a Bearer authorization header.
// Returns "" for any other scheme or a bare token without a scheme.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
