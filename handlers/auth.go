package handlers

import (
	"record-sync/app"
	"record-sync/middleware"

	"github.com/gofiber/fiber/v2"
)

// Me echoes the identity resolved from the caller's token.
func Me(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident := middleware.GetIdentity(c)
		return success(c, ident)
	}
}
