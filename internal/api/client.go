// Package api is the typed HTTP client for the onboarding backend. Every
// authenticated call carries the current credential as a bearer token; a 401
// surfaces as ErrUnauthorized so callers can fall back to signing in.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	userAgent            = "walletgate"
)

// Client talks to the backend rooted at a base URL such as
// "https://api.example.com/".
type Client struct {
	base    string
	http    *fiber.Client
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	bearer string
}

// New builds a client. timeout bounds requests whose context has no deadline.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		base:    baseURL,
		http:    &fiber.Client{UserAgent: userAgent},
		timeout: timeout,
		logger:  logger,
	}
}

// SetBearer replaces the credential attached to authenticated requests.
// An empty token removes the header.
func (c *Client) SetBearer(token string) {
	c.mu.Lock()
	c.bearer = token
	c.mu.Unlock()
}

// Bearer returns the credential currently attached to requests.
func (c *Client) Bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.send(ctx, fiber.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if in == nil {
		in = struct{}{}
	}
	return c.send(ctx, fiber.MethodPost, path, in, out)
}

func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}

	url := c.base + strings.TrimPrefix(path, "/")
	var agent *fiber.Agent
	switch method {
	case fiber.MethodPost:
		agent = c.http.Post(url)
		agent.Set(idempotencyKeyHeader, uuid.NewString())
		agent.JSON(in)
	default:
		agent = c.http.Get(url)
	}
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if token := c.Bearer(); token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if timeout > 0 {
		agent.Timeout(timeout)
	}

	start := time.Now()
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		c.logger.Warn("api request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	c.logger.Debug("api request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &Error{Method: method, Path: path, Status: status, Message: errorMessage(body)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}
