package config

// EnvPrefix is handed to envconfig; every field carries an explicit full name.
const EnvPrefix = "AGRIMARKET"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "AGRIMARKET_APP_ENV"
	EnvPort     = "AGRIMARKET_APP_PORT"
	EnvLogLevel = "AGRIMARKET_LOG_LEVEL"

	EnvDBDSN  = "AGRIMARKET_DB_DSN"
	EnvDBHost = "AGRIMARKET_DB_HOST"
	EnvDBPort = "AGRIMARKET_DB_PORT"
	EnvDBUser = "AGRIMARKET_DB_USER"
	EnvDBPass = "AGRIMARKET_DB_PASSWORD"
	EnvDBName = "AGRIMARKET_DB_NAME"

	EnvRedisURL = "AGRIMARKET_REDIS_URL"

	EnvJWTSecret  = "AGRIMARKET_JWT_SECRET"
	EnvJWTIssuer  = "AGRIMARKET_JWT_ISSUER"
	EnvJWTExpMins = "AGRIMARKET_JWT_EXPIRATION_MINUTES"

	EnvPaystackSecretKey     = "AGRIMARKET_PAYSTACK_SECRET_KEY"
	EnvPaystackWebhookSecret = "AGRIMARKET_PAYSTACK_WEBHOOK_SECRET"
	EnvPaystackBaseURL       = "AGRIMARKET_PAYSTACK_BASE_URL"
	EnvFrontendURL           = "AGRIMARKET_FRONTEND_URL"

	EnvCORSAllowedOrigins = "AGRIMARKET_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
