package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletgate/internal/auth"
	"github.com/congo-pay/walletgate/internal/identity"
)

// JWTAuth verifies the bearer token and stores its identity in locals.
// Every failure answers with the same 401 body.
func JWTAuth(issuer *auth.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
		}
		id, err := issuer.Verify(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
		}

		c.Locals(identity.LocalAddress, id.Address)
		c.Locals(identity.LocalEmail, id.Email)
		if id.Registered() {
			c.Locals(identity.LocalUserID, id.UserID)
		}
		return c.Next()
	}
}

// RequireUser rejects tokens issued before signup.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if uid, _ := c.Locals(identity.LocalUserID).(string); uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
		}
		return c.Next()
	}
}
