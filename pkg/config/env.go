package config

// EnvPrefix is handed to envconfig; every field also carries its full
// variable name so lookups fall back to the unprefixed tag.
const EnvPrefix = "CS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv           = "CS_APP_ENV"
	EnvPort             = "CS_APP_PORT"
	EnvLogLevel         = "CS_LOG_LEVEL"
	EnvRedisURL         = "CS_REDIS_URL"
	EnvRedisEndpoint    = "CS_REDIS_ENDPOINT"
	EnvRedisAuthToken   = "CS_REDIS_AUTH_TOKEN"
	EnvRedisPoolSize    = "CS_REDIS_POOL_SIZE"
	EnvCartMaxItems     = "CS_CART_MAX_ITEMS"
	EnvCartUserTTL      = "CS_CART_USER_TTL"
	EnvCartGuestTTL     = "CS_CART_GUEST_TTL"
	EnvRetryMaxAttempts = "CS_RETRY_MAX_ATTEMPTS"
	EnvJWTSecret        = "CS_JWT_SECRET"
	EnvPubSubTopic      = "CS_PUBSUB_CHECKOUT_TOPIC"
)
