package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "app.gnosispay.com", cfg.SIWEDomain)
	assert.Equal(t, "https://app.gnosispay.com", cfg.SIWEURI)
	assert.Equal(t, int64(100), cfg.WalletChainID)
	assert.Equal(t, 5*time.Second, cfg.DeployPoll)
	assert.Equal(t, 30*time.Second, cfg.BalancePoll)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 3*time.Second, cfg.SafeDeployDelay)
	assert.Equal(t, "memory", cfg.CredentialBackend)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, ":8080", cfg.Address())
}

func TestLoadDurationForms(t *testing.T) {
	t.Setenv("DEPLOY_POLL_INTERVAL_SECONDS", "2")
	t.Setenv("BALANCE_POLL_INTERVAL", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.DeployPoll)
	assert.Equal(t, time.Minute, cfg.BalancePoll)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "REQUEST_TIMEOUT", "soon"},
		{"bad seconds", "NONCE_TTL_SECONDS", "ten"},
		{"bad chain", "WALLET_CHAIN_ID", "gnosis"},
		{"bad bool", "DEV_MODE", "maybe"},
		{"unknown backend", "CREDENTIAL_BACKEND", "disk"},
		{"redis without url", "CREDENTIAL_BACKEND", "redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadNormalizesBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://api.local")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://api.local/", cfg.APIBaseURL)
}

func TestValidateServer(t *testing.T) {
	cfg := Config{AppEnv: "production", TokenTTL: time.Hour}
	assert.Error(t, cfg.ValidateServer())

	cfg.JWTSecret = "secret"
	assert.NoError(t, cfg.ValidateServer())

	dev := Config{AppEnv: "dev", TokenTTL: time.Hour}
	assert.NoError(t, dev.ValidateServer())
}
