// Package storage persists small namespaced key/value entries on behalf of the
// session client. It plays the role browser local storage plays for a web
// client: credentials per wallet address and advisory developer flags.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no value is stored under a key.
var ErrNotFound = errors.New("storage: key not found")

// KV is the persistence contract shared by all backends.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
