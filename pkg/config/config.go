package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	Cart     CartConfig
	Retry    RetryConfig
	Security SecurityConfig
	JWT      JWTConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Redis.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"CS_APP_ENV" default:"dev"`
	Port            string        `envconfig:"CS_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"CS_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"CS_LOG_WARN_STACK" default:"false"`
	LogFormat       string        `envconfig:"CS_LOG_FORMAT" default:"json"`
	Version         string        `envconfig:"CS_APP_VERSION" default:"dev"`
	ShutdownTimeout time.Duration `envconfig:"CS_APP_SHUTDOWN_TIMEOUT" default:"15s"`
	CORSOrigins     []string      `envconfig:"CS_APP_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// RedisConfig describes the cache endpoint. Either URL or the
// endpoint/auth token pair handed over by the secret store must be set.
type RedisConfig struct {
	URL          string        `envconfig:"CS_REDIS_URL"`
	Endpoint     string        `envconfig:"CS_REDIS_ENDPOINT"`
	Username     string        `envconfig:"CS_REDIS_USERNAME"`
	AuthToken    string        `envconfig:"CS_REDIS_AUTH_TOKEN"`
	DB           int           `envconfig:"CS_REDIS_DB" default:"0"`
	TLS          bool          `envconfig:"CS_REDIS_TLS" default:"false"`
	KeyNamespace string        `envconfig:"CS_REDIS_KEY_NAMESPACE" default:"cs"`
	PoolSize     int           `envconfig:"CS_REDIS_POOL_SIZE" default:"50"`
	MinIdleConns int           `envconfig:"CS_REDIS_MIN_IDLE_CONNS" default:"5"`
	PoolTimeout  time.Duration `envconfig:"CS_REDIS_POOL_TIMEOUT" default:"5s"`
	DialTimeout  time.Duration `envconfig:"CS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"CS_REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) validate() error {
	if strings.TrimSpace(r.URL) == "" && strings.TrimSpace(r.Endpoint) == "" {
		return fmt.Errorf("either %s or %s is required", EnvRedisURL, EnvRedisEndpoint)
	}
	if r.PoolSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvRedisPoolSize)
	}
	return nil
}

type CartConfig struct {
	MaxItems     int           `envconfig:"CS_CART_MAX_ITEMS" default:"200"`
	MaxQuantity  int           `envconfig:"CS_CART_MAX_QUANTITY" default:"99"`
	UserTTL      time.Duration `envconfig:"CS_CART_USER_TTL" default:"168h"`
	GuestTTL     time.Duration `envconfig:"CS_CART_GUEST_TTL" default:"24h"`
	CompletedTTL time.Duration `envconfig:"CS_CART_COMPLETED_TTL" default:"1h"`
}

func (c CartConfig) validate() error {
	if c.MaxItems <= 0 || c.MaxQuantity <= 0 {
		return errors.New("cart item and quantity limits must be positive")
	}
	if c.UserTTL <= 0 || c.GuestTTL <= 0 || c.CompletedTTL <= 0 {
		return errors.New("cart ttls must be positive")
	}
	return nil
}

type RetryConfig struct {
	MaxAttempts       int           `envconfig:"CS_RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay         time.Duration `envconfig:"CS_RETRY_BASE_DELAY" default:"50ms"`
	MaxDelay          time.Duration `envconfig:"CS_RETRY_MAX_DELAY" default:"1s"`
	PoolBackoffFactor int           `envconfig:"CS_RETRY_POOL_BACKOFF_FACTOR" default:"4"`
	JitterPercent     uint64        `envconfig:"CS_RETRY_JITTER_PERCENT" default:"10"`
}

type SecurityConfig struct {
	// LogHashKey keys the digest used to redact identifiers in logs.
	LogHashKey string `envconfig:"CS_LOG_HASH_KEY"`
}

// JWTConfig is optional. When Secret is empty the API trusts the X-User-ID
// header instead of a bearer token.
type JWTConfig struct {
	Secret            string `envconfig:"CS_JWT_SECRET"`
	Issuer            string `envconfig:"CS_JWT_ISSUER" default:"cart-service"`
	ExpirationMinutes int    `envconfig:"CS_JWT_EXPIRATION_MINUTES" default:"60"`
}

func (j JWTConfig) Enabled() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type GCPConfig struct {
	ProjectID string `envconfig:"CS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	CheckoutTopic string `envconfig:"CS_PUBSUB_CHECKOUT_TOPIC"`
}

func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.CheckoutTopic) != ""
}
