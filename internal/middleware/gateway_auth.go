package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/photofuse/api/pkg/response"
)

// GatewayAuthMiddleware trusts user identity headers set by an upstream
// authenticating proxy (ForwardAuth). Only enable behind such a proxy.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals("userId", userID)
		c.Locals("email", c.Get("X-User-Email"))

		return c.Next()
	}
}
