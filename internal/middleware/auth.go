package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/photofuse/api/internal/auth"
	"github.com/photofuse/api/pkg/response"
)

// AuthMiddleware validates the submitter's session token. Verification is
// delegated to the identity provider's JWKS when configured, with an HMAC
// fallback for legacy tokens and tests.
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

// NewAuthMiddleware creates auth middleware. Either argument may be zero;
// at least one must be usable or every request is rejected.
func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// Authenticate validates the bearer token from the Authorization header and
// stores the caller's identity in the request context.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return response.Unauthorized(c, "Invalid authorization header format")
		}
		tokenString := parts[1]

		if m.verifier != nil {
			claims, err := m.verifier.Validate(tokenString)
			if err == nil {
				c.Locals("userId", claims.UserID)
				c.Locals("email", claims.Email)
				return c.Next()
			}
			if m.jwtSecret == "" {
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			c.Locals("userId", claims.UserID)
			c.Locals("email", claims.Email)
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

// GetUserID extracts the authenticated caller's id from the request context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}
