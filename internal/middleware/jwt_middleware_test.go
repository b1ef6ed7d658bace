package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigstage/settlement_api/internal/utils"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc.def.ghi", "abc.def.ghi"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer ", ""},
		{"abc.def.ghi", ""},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, bearerToken(tc.header), "header %q", tc.header)
	}
}

func TestJWTMiddleware_Handle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")
	handle := NewJWTMiddleware().Handle()

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/admin/ledger", nil)

		handle(c)

		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/admin/ledger", nil)
		c.Request.Header.Set("Authorization", "Bearer not-a-token")

		handle(c)

		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid admin token", func(t *testing.T) {
		token, err := utils.GenerateJWT(7, "ops@gigstage.in")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/admin/ledger", nil)
		c.Request.Header.Set("Authorization", "Bearer "+token)

		handle(c)

		assert.False(t, c.IsAborted())
		adminID, ok := c.Get("admin_id")
		require.True(t, ok)
		assert.Equal(t, 7, adminID)
		adminEmail, _ := c.Get("admin_email")
		assert.Equal(t, "ops@gigstage.in", adminEmail)
	})
}
