package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "walletgate:idempotency:"
	pendingReply         = "pending"
	storeTimeout         = 2 * time.Second
)

// reply is what gets replayed for a repeated key. Route pins the key to the
// request it was first used with.
type reply struct {
	Route       string `json:"route"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
}

type replayStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// reserve claims key. It returns the stored reply when the key was used
// before, or ok=false when another request holding key is still running.
func (s replayStore) reserve(ctx context.Context, key string) (prev *reply, ok bool, err error) {
	claimed, err := s.cache.SetNX(ctx, key, pendingReply, s.ttl).Result()
	if err != nil || claimed {
		return nil, claimed, err
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// Released between the two calls; claim again next time.
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case string(raw) == pendingReply:
		return nil, false, nil
	}
	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func (s replayStore) save(ctx context.Context, key string, r reply) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, raw, s.ttl).Err()
}

func (s replayStore) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

// Idempotency replays the reply of a state-changing request whose
// Idempotency-Key was seen before. Keys are scoped to the caller's credential
// and to the route of their first use. Server errors are not kept, so a
// retry after a 5xx runs again. When the store is unreachable requests
// proceed unprotected.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := replayStore{cache: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		key := c.Get(idempotencyKeyHeader)
		if key == "" || c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead || c.Method() == fiber.MethodOptions {
			return c.Next()
		}
		route := c.Method() + " " + c.Path()
		cacheKey := idempotencyPrefix + scope(c) + ":" + key

		ctx, cancel := context.WithTimeout(c.UserContext(), storeTimeout)
		prev, ok, err := store.reserve(ctx, cacheKey)
		cancel()
		switch {
		case err != nil:
			logger.Warn("idempotency store unavailable", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		case !ok:
			return fiber.NewError(fiber.StatusConflict, "a request with this idempotency key is still in progress")
		case prev != nil && prev.Route != route:
			return fiber.NewError(fiber.StatusUnprocessableEntity, "idempotency key was used for another request")
		case prev != nil:
			if prev.ContentType != "" {
				c.Set(fiber.HeaderContentType, prev.ContentType)
			}
			c.Set("Idempotent-Replayed", "true")
			return c.Status(prev.Status).Send(prev.Body)
		}

		if err := c.Next(); err != nil {
			store.release(cacheKey)
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			store.release(cacheKey)
			return nil
		}

		saveCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		err = store.save(saveCtx, cacheKey, reply{
			Route:       route,
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		if err != nil {
			logger.Error("persist idempotent reply", slog.String("key", key), slog.Any("error", err))
			store.release(cacheKey)
		}
		return nil
	}
}

// scope derives a short caller fingerprint from the Authorization header.
func scope(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.Get(fiber.HeaderAuthorization)))
	return hex.EncodeToString(sum[:8])
}
