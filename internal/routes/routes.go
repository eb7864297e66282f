package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/walletgate/internal/auth"
	"github.com/congo-pay/walletgate/internal/config"
	"github.com/congo-pay/walletgate/internal/identity"
	"github.com/congo-pay/walletgate/internal/middleware"
)

const devSecret = "walletgate-dev-secret"

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Now overrides the clock of token, nonce and deployment logic.
	Now func() time.Time
}

// Setup configures middlewares and all backend routes.
func Setup(app *fiber.App, d Deps) error {
	if err := d.Cfg.ValidateServer(); err != nil {
		return err
	}
	secret := d.Cfg.JWTSecret
	if secret == "" {
		d.Logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devSecret
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() && d.Cfg.LogFormat == "text" {
		// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	// Services and handlers
	var repo identity.Repository
	if d.DB != nil {
		pg := identity.NewPostgresRepository(d.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure users schema: %w", err)
		}
		repo = pg
	} else {
		repo = identity.NewMemoryRepository()
	}
	users := identity.NewService(repo, identity.Options{
		DeployDelay: d.Cfg.SafeDeployDelay,
		ChainID:     d.Cfg.WalletChainID,
		Now:         d.Now,
	})

	var nonces auth.NonceStore
	if d.Cache != nil {
		nonces = auth.NewRedisNonces(d.Cache, d.Cfg.NonceTTL)
	} else {
		nonces = auth.NewMemoryNonces(d.Cfg.NonceTTL, d.Now)
	}
	issuer := auth.NewIssuer(secret, d.Cfg.TokenTTL, d.Now)
	authSvc := auth.NewService(issuer, nonces, users, d.Cfg.SIWEDomain, d.Logger)

	authHandler := auth.NewHandler(authSvc, d.Logger)
	userHandler := identity.NewHandler(users, d.Logger)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	jwtmw := middleware.JWTAuth(issuer)
	RegisterAuthRoutes(api, authHandler, middleware.ChallengeRateLimit(d.Cache, d.Cfg.ChallengesPerMin), jwtmw)
	RegisterUserRoutes(api, userHandler, jwtmw)
	if d.Cfg.DevMode {
		RegisterDevRoutes(app, userHandler)
		d.Logger.Info("development helpers enabled under /dev")
	}

	return nil
}
