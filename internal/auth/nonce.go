package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const noncePrefix = "walletgate:nonce:"

// NonceStore issues single-use challenge nonces.
type NonceStore interface {
	Issue(ctx context.Context) (string, error)
	// Consume reports whether nonce was issued, unexpired and unused.
	Consume(ctx context.Context, nonce string) (bool, error)
}

// newNonce returns 32 alphanumeric characters.
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type memoryNonces struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]time.Time
}

// NewMemoryNonces keeps nonces in process memory.
func NewMemoryNonces(ttl time.Duration, now func() time.Time) NonceStore {
	if now == nil {
		now = time.Now
	}
	return &memoryNonces{ttl: ttl, now: now, pending: make(map[string]time.Time)}
}

func (m *memoryNonces) Issue(context.Context) (string, error) {
	nonce := newNonce()
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for n, exp := range m.pending {
		if !now.Before(exp) {
			delete(m.pending, n)
		}
	}
	m.pending[nonce] = now.Add(m.ttl)
	return nonce, nil
}

func (m *memoryNonces) Consume(_ context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.pending[nonce]
	if !ok {
		return false, nil
	}
	delete(m.pending, nonce)
	return m.now().Before(exp), nil
}

// RedisNonces keeps nonces in Redis with a TTL.
type RedisNonces struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisNonces builds a Redis-backed nonce store.
func NewRedisNonces(client *redis.Client, ttl time.Duration) *RedisNonces {
	return &RedisNonces{client: client, ttl: ttl}
}

// Issue stores a fresh nonce.
func (r *RedisNonces) Issue(ctx context.Context) (string, error) {
	nonce := newNonce()
	if err := r.client.Set(ctx, noncePrefix+nonce, 1, r.ttl).Err(); err != nil {
		return "", err
	}
	return nonce, nil
}

// Consume deletes the nonce; only the caller that removed it wins.
func (r *RedisNonces) Consume(ctx context.Context, nonce string) (bool, error) {
	n, err := r.client.Del(ctx, noncePrefix+nonce).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
