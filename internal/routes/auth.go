package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletgate/internal/auth"
)

// RegisterAuthRoutes wires the sign-in endpoints. Signup accepts tokens
// issued before signup; everything else under /auth is public.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, jwtmw fiber.Handler) {
	group := r.Group("/auth")
	group.Get("/nonce", h.Nonce)
	if rateLimiter != nil {
		group.Post("/challenge", rateLimiter, h.Challenge)
	} else {
		group.Post("/challenge", h.Challenge)
	}
	group.Post("/signup", jwtmw, h.Signup)
}
