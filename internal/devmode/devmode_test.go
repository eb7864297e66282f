package devmode

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletgate/internal/logging"
	"github.com/congo-pay/walletgate/internal/storage"
)

func TestBypassDefaultsOff(t *testing.T) {
	f := Load(context.Background(), storage.NewMemory(), true, logging.Discard())
	assert.False(t, f.Bypass())
	assert.False(t, f.SkipSafeSetup())
}

func TestBypassPersistsAcrossLoads(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	kv := storage.NewRedis(client)
	ctx := context.Background()

	f := Load(ctx, kv, true, logging.Discard())
	calls := 0
	f.Subscribe(func() { calls++ })
	require.NoError(t, f.SetBypass(ctx, true))
	assert.True(t, f.Bypass())
	assert.Equal(t, 1, calls)

	v, err := kv.Get(ctx, BypassKey)
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	reloaded := Load(ctx, kv, true, logging.Discard())
	assert.True(t, reloaded.Bypass())

	require.NoError(t, reloaded.SetBypass(ctx, false))
	assert.False(t, Load(ctx, kv, true, logging.Discard()).Bypass())
}

func TestOutsideDevModeSwitchesStayOff(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, BypassKey, "true"))

	f := Load(ctx, kv, false, logging.Discard())
	assert.False(t, f.Enabled())
	assert.False(t, f.Bypass(), "persisted value is ignored outside dev mode")
	assert.ErrorIs(t, f.SetBypass(ctx, true), ErrDisabled)
	assert.ErrorIs(t, f.SetSkipSafeSetup(true), ErrDisabled)
	assert.False(t, f.SkipSafeSetup())
}

func TestSkipSafeSetupIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	f := Load(ctx, kv, true, logging.Discard())
	require.NoError(t, f.SetSkipSafeSetup(true))
	assert.True(t, f.SkipSafeSetup())

	assert.False(t, Load(ctx, kv, true, logging.Discard()).SkipSafeSetup())
}
