package middleware

import (
	"errors"
	"record-sync/config"
	"record-sync/models"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// VerifyToken resolves a signed token to the caller's identity. Used for
// both the Authorization header and the realtime handshake token.
func VerifyToken(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, errors.New("invalid token claims")
	}

	userID, _ := claims["id"].(string)
	if userID == "" {
		return models.Identity{}, errors.New("token has no user id")
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleUser
	}

	return models.Identity{UserID: userID, Role: role}, nil
}

// Protect requires a valid Bearer token and stores the resolved identity
// for downstream handlers.
func Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c)
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c)
		}

		ident, err := VerifyToken(parts[1])
		if err != nil {
			return unauthorized(c)
		}

		c.Locals("identity", ident)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   "Not authorized to access this route",
	})
}

// GetIdentity returns the identity Protect resolved for this request.
func GetIdentity(c *fiber.Ctx) models.Identity {
	ident, ok := c.Locals("identity").(models.Identity)
	if !ok {
		return models.Identity{}
	}
	return ident
}
