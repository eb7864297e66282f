package infra

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletgate/internal/config"
	"github.com/congo-pay/walletgate/internal/logging"
	"github.com/congo-pay/walletgate/internal/storage"
)

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestConnectRejectsEmptyURLs(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "")
	assert.Error(t, err)
	_, err = NewPostgresPool(context.Background(), "")
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	b, err := OpenBackend(ctx, config.Config{CredentialBackend: "redis", RedisURL: "redis://" + mr.Addr()}, logging.Discard())
	require.NoError(t, err)
	_, ok := b.KV.(*storage.RedisKV)
	assert.True(t, ok)
	require.NoError(t, b.Close())

	mem, err := OpenBackend(ctx, config.Config{CredentialBackend: "memory"}, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, mem.KV.Set(ctx, "k", "v"))
	assert.NoError(t, mem.Close())
}
