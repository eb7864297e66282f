package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/walletgate/internal/siwe"
)

// ChallengeRateLimit limits sign-in attempts per wallet, or per IP when the
// message names no wallet. It is a no-op without Redis.
func ChallengeRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Message string `json:"message"`
		}
		_ = c.BodyParser(&req)
		subject := c.IP()
		if msg, err := siwe.Parse(req.Message); err == nil {
			subject = strings.ToLower(msg.Address)
		}

		key := "rl:challenge:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail open
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many sign-in attempts, try again later")
		}
		return c.Next()
	}
}
