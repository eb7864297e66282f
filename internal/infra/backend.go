package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/walletgate/internal/config"
	"github.com/congo-pay/walletgate/internal/storage"
)

// Backend bundles the client-state store with whatever connection it owns.
type Backend struct {
	KV    storage.KV
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// OpenBackend connects the persistence layer selected by CREDENTIAL_BACKEND.
func OpenBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.CredentialBackend {
	case "redis":
		cache, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &Backend{KV: storage.NewRedis(cache), Cache: cache}, nil
	case "postgres":
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		kv := storage.NewPostgres(db)
		if err := kv.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure client_state schema: %w", err)
		}
		return &Backend{KV: kv, DB: db}, nil
	default:
		logger.Warn("using in-memory credential store; sessions will not survive a restart")
		return &Backend{KV: storage.NewMemory()}, nil
	}
}

// Close releases any owned connection.
func (b *Backend) Close() error {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Cache != nil {
		return b.Cache.Close()
	}
	return nil
}
