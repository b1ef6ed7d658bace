package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gigstage/settlement_api/internal/models"
	"github.com/gigstage/settlement_api/internal/service"
	"github.com/gigstage/settlement_api/internal/utils"
)

// AuthMiddleware handles API key authentication for collaborator systems.
type AuthMiddleware struct {
	authService *service.AuthService
	rateLimiter *InvalidAuthRateLimiter
}

// NewAuthMiddleware constructs a new AuthMiddleware.
func NewAuthMiddleware(authService *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		rateLimiter: NewInvalidAuthRateLimiter(),
	}
}

// Handle returns a Gin middleware function that enforces authentication.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			m.handleAuthError(c, "INVALID_TOKEN", "Missing or invalid authorization header")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		client, err := m.authService.ValidateAPIKey(token)
		if err != nil || client == nil {
			m.handleAuthError(c, "INVALID_TOKEN", "Invalid API token")
			return
		}

		// X-Client-Id must match the key owner when the caller sends it.
		if clientID := c.GetHeader("X-Client-Id"); clientID != "" && clientID != client.ClientID {
			m.handleAuthError(c, "INVALID_CLIENT", "Client ID mismatch")
			return
		}

		c.Set("client", client)
		c.Set("client_id", client.ID)

		c.Next()
	}
}

func (m *AuthMiddleware) handleAuthError(c *gin.Context, code, message string) {
	// Apply rate limit for invalid auth attempts
	ip := c.ClientIP()
	if !m.rateLimiter.Allow(ip) {
		utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many invalid authentication attempts")
		c.Abort()
		return
	}

	utils.Error(c, 401, code, message)
	c.Abort()
}

// GetClient returns the authenticated client from context.
func GetClient(c *gin.Context) *models.Client {
	client, _ := c.Get("client")
	if client == nil {
		return nil
	}
	return client.(*models.Client)
}
