package middleware

import (
	"net/http"
	"net/http/httptest"
	"record-sync/config"
	"record-sync/models"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestMain(m *testing.M) {
	config.AppConfig = &config.Config{JWTSecret: testSecret}
	m.Run()
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyToken(t *testing.T) {
	t.Run("valid token resolves identity", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"id": "user-1", "role": "admin"})

		ident, err := VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", ident.UserID)
		assert.True(t, ident.IsAdmin())
	})

	t.Run("missing role defaults to user", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"id": "user-1"})

		ident, err := VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, ident.Role)
		assert.False(t, ident.IsAdmin())
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{"id": "user-1"})

		_, err := VerifyToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"id":  "user-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := VerifyToken(token)
		assert.Error(t, err)
	})

	t.Run("token without user id is rejected", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"role": "user"})

		_, err := VerifyToken(token)
		assert.Error(t, err)
	})
}

func TestProtect(t *testing.T) {
	app := fiber.New()
	app.Get("/private", Protect(), func(c *fiber.Ctx) error {
		ident := GetIdentity(c)
		return c.JSON(fiber.Map{"success": true, "data": ident})
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{
			name:       "valid bearer token",
			header:     "Bearer " + signToken(t, testSecret, jwt.MapClaims{"id": "user-1"}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer scheme",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			header:     "Bearer not.a.token",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
