package credential

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/congo-pay/walletgate/internal/storage"
)

// KeyPrefix namespaces persisted credentials; one entry per wallet address.
const KeyPrefix = "gp-ui.jwt"

// Key returns the storage key for address. Addresses compare case-insensitively
// so a checksummed and a lowercased form share one entry.
func Key(address string) string {
	return KeyPrefix + "." + strings.ToLower(address)
}

// Store persists one credential per wallet address and never returns a
// structurally invalid value.
type Store struct {
	kv     storage.KV
	logger *slog.Logger
}

// NewStore wraps a key/value backend.
func NewStore(kv storage.KV, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load returns the credential saved for address. A malformed stored value is
// deleted and reported as ErrNotFound.
func (s *Store) Load(ctx context.Context, address string) (string, error) {
	if address == "" {
		return "", ErrNoAddress
	}
	key := Key(address)
	token, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !WellFormed(token) {
		s.logger.Warn("invalid token format in store, clearing it", slog.String("address", address))
		if err := s.kv.Delete(ctx, key); err != nil {
			s.logger.Error("clear invalid token", slog.String("address", address), slog.Any("error", err))
		}
		return "", ErrNotFound
	}
	return token, nil
}

// Save overwrites the credential for address.
func (s *Store) Save(ctx context.Context, address, token string) error {
	if address == "" {
		return ErrNoAddress
	}
	if token == "" {
		return ErrEmptyToken
	}
	return s.kv.Set(ctx, Key(address), token)
}

// Delete forgets the credential for address.
func (s *Store) Delete(ctx context.Context, address string) error {
	if address == "" {
		return ErrNoAddress
	}
	return s.kv.Delete(ctx, Key(address))
}
