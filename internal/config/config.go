package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "walletgate"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultAPIBaseURL       = "http://localhost:8080/"
	defaultSIWEDomain       = "app.gnosispay.com"
	defaultSIWEURI          = "https://app.gnosispay.com"
	defaultSIWEStatement    = "Sign in with Ethereum to the app."
	defaultChainID          = 100
	defaultCredentialStore  = "memory"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultRequestTimeout   = 15 * time.Second
	defaultDeployPoll       = 5 * time.Second
	defaultBalancePoll      = 30 * time.Second
	defaultTokenTTL         = 7 * 24 * time.Hour
	defaultNonceTTL         = 10 * time.Minute
	defaultChallengesPerMin = 10
	defaultSafeDeployDelay  = 3 * time.Second
)

// Config captures runtime configuration for both the session client and the
// development backend. Values are loaded from environment variables.
type Config struct {
	AppName   string
	AppEnv    string
	LogLevel  string
	LogFormat string
	DevMode   bool

	// Client side.
	APIBaseURL        string
	SIWEDomain        string
	SIWEURI           string
	SIWEStatement     string
	CredentialBackend string
	RequestTimeout    time.Duration
	DeployPoll        time.Duration
	BalancePoll       time.Duration
	WalletAddress     string
	WalletChainID     int64
	WalletSignerKey   string

	// Shared infrastructure.
	DatabaseURL string
	RedisURL    string

	// Backend side.
	Port             string
	JWTSecret        string
	TokenTTL         time.Duration
	NonceTTL         time.Duration
	IdempotencyTTL   time.Duration
	ShutdownPeriod   time.Duration
	ChallengesPerMin int
	SafeDeployDelay  time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		APIBaseURL:        getEnv("API_BASE_URL", defaultAPIBaseURL),
		SIWEDomain:        getEnv("SIWE_DOMAIN", defaultSIWEDomain),
		SIWEURI:           getEnv("SIWE_URI", defaultSIWEURI),
		SIWEStatement:     getEnv("SIWE_STATEMENT", defaultSIWEStatement),
		CredentialBackend: strings.ToLower(getEnv("CREDENTIAL_BACKEND", defaultCredentialStore)),
		WalletAddress:     os.Getenv("WALLET_ADDRESS"),
		WalletChainID:     defaultChainID,
		WalletSignerKey:   os.Getenv("WALLET_SIGNER_KEY"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		Port:              getEnv("PORT", defaultPort),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		ChallengesPerMin:  defaultChallengesPerMin,
	}

	var err error
	if cfg.DevMode, err = getBool("DEV_MODE", isDev(cfg.AppEnv)); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("WALLET_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid WALLET_CHAIN_ID: %w", err)
		}
		cfg.WalletChainID = id
	}
	if v := os.Getenv("CHALLENGES_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CHALLENGES_PER_MINUTE: %w", err)
		}
		cfg.ChallengesPerMin = n
	}

	durations := []struct {
		name     string
		dst      *time.Duration
		fallback time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownPeriod, defaultShutdownDelay},
		{"IDEMPOTENCY_TTL", &cfg.IdempotencyTTL, defaultIdempotencyTTL},
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout, defaultRequestTimeout},
		{"DEPLOY_POLL_INTERVAL", &cfg.DeployPoll, defaultDeployPoll},
		{"BALANCE_POLL_INTERVAL", &cfg.BalancePoll, defaultBalancePoll},
		{"TOKEN_TTL", &cfg.TokenTTL, defaultTokenTTL},
		{"NONCE_TTL", &cfg.NonceTTL, defaultNonceTTL},
		{"SAFE_DEPLOY_DELAY", &cfg.SafeDeployDelay, defaultSafeDeployDelay},
	}
	for _, d := range durations {
		v, err := getDuration(d.name, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	switch cfg.CredentialBackend {
	case "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when CREDENTIAL_BACKEND=redis")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when CREDENTIAL_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("invalid CREDENTIAL_BACKEND %q", cfg.CredentialBackend)
	}

	if !strings.HasSuffix(cfg.APIBaseURL, "/") {
		cfg.APIBaseURL += "/"
	}

	return cfg, nil
}

// ValidateServer checks the settings the development backend cannot run without.
func (c Config) ValidateServer() error {
	if c.JWTSecret == "" {
		if !c.IsDev() {
			return fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", c.AppEnv)
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// IsDev reports whether the configured environment is a development one.
func (c Config) IsDev() bool {
	return isDev(c.AppEnv)
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts either KEY_SECONDS as an integer or KEY as a Go duration string.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
