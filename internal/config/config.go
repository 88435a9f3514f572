package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "WalletService"
	defaultAppEnv           = "development"
	defaultPort             = "3002"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultAccessTokenTTL   = time.Hour
	defaultKafkaClientID    = "wallet-microservice"
	defaultKafkaGroupID     = "wallet-microservice-group"
	defaultRequestTopic     = "client-microservice-requests"
	defaultResponseTopic    = "client-microservice-responses"
	defaultEventsTopic      = "wallet-events"
	defaultLookupTimeout    = 5 * time.Second
	defaultTokenTimeout     = 10 * time.Second
	defaultReconnectDelay   = 5 * time.Second
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	accessTokenTTLEnvVar    = "ACCESS_TOKEN_TTL"
	lookupTimeoutEnvVar     = "IDENTITY_LOOKUP_TIMEOUT"
	tokenTimeoutEnvVar      = "IDENTITY_TOKEN_TIMEOUT"
	reconnectDelayEnvVar    = "KAFKA_RECONNECT_DELAY"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	AccessTokenTTL time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	Kafka          KafkaConfig
	Identity       IdentityConfig
}

// KafkaConfig holds broker connectivity settings. An empty broker list disables
// remote identity resolution.
type KafkaConfig struct {
	Brokers        []string
	ClientID       string
	GroupID        string
	EventsTopic    string
	ReconnectDelay time.Duration
}

// IdentityConfig describes the request/reply contract with the identity service.
type IdentityConfig struct {
	RequestTopic  string
	ResponseTopic string
	LookupTimeout time.Duration
	TokenTimeout  time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is applied first when present; variables
// already set in the process environment take precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: defaultAccessTokenTTL,
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		Kafka: KafkaConfig{
			Brokers:        splitList(os.Getenv("KAFKA_BROKERS")),
			ClientID:       getEnv("KAFKA_CLIENT_ID", defaultKafkaClientID),
			GroupID:        getEnv("KAFKA_GROUP_ID", defaultKafkaGroupID),
			EventsTopic:    getEnv("WALLET_EVENTS_TOPIC", defaultEventsTopic),
			ReconnectDelay: defaultReconnectDelay,
		},
		Identity: IdentityConfig{
			RequestTopic:  getEnv("IDENTITY_REQUEST_TOPIC", defaultRequestTopic),
			ResponseTopic: getEnv("IDENTITY_RESPONSE_TOPIC", defaultResponseTopic),
			LookupTimeout: defaultLookupTimeout,
			TokenTimeout:  defaultTokenTimeout,
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = duration(accessTokenTTLEnvVar, cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.Identity.LookupTimeout, err = duration(lookupTimeoutEnvVar, cfg.Identity.LookupTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Identity.TokenTimeout, err = duration(tokenTimeoutEnvVar, cfg.Identity.TokenTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Kafka.ReconnectDelay, err = duration(reconnectDelayEnvVar, cfg.Kafka.ReconnectDelay); err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether in-memory fallbacks are allowed for missing backends.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// RemoteIdentityEnabled reports whether a Kafka broker list was configured.
func (c Config) RemoteIdentityEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return duration(durationKey, fallback)
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
