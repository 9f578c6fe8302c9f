package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Paystack     PaystackConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Paystack.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGRIMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"AGRIMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGRIMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGRIMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AGRIMARKET_DB_DSN"`
	Driver string `envconfig:"AGRIMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGRIMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"AGRIMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGRIMARKET_DB_USER"`
	LegacyPassword string `envconfig:"AGRIMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGRIMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGRIMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGRIMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGRIMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGRIMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGRIMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQueryThreshold logs statements slower than this at warn. Zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"AGRIMARKET_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGRIMARKET_REDIS_URL"`
	Address      string        `envconfig:"AGRIMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"AGRIMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGRIMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGRIMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGRIMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGRIMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGRIMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGRIMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGRIMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGRIMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AGRIMARKET_JWT_EXPIRATION_MINUTES" default:"30"`
	// Leeway absorbs clock skew between the identity service and this API.
	Leeway time.Duration `envconfig:"AGRIMARKET_JWT_LEEWAY" default:"30s"`
}

// PaystackConfig holds the payment gateway credentials and endpoints.
type PaystackConfig struct {
	SecretKey     string        `envconfig:"AGRIMARKET_PAYSTACK_SECRET_KEY" required:"true"`
	WebhookSecret string        `envconfig:"AGRIMARKET_PAYSTACK_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"AGRIMARKET_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	FrontendURL   string        `envconfig:"AGRIMARKET_FRONTEND_URL" required:"true"`
	CallbackPath  string        `envconfig:"AGRIMARKET_PAYSTACK_CALLBACK_PATH" default:"/payment/verify"`
	Timeout       time.Duration `envconfig:"AGRIMARKET_PAYSTACK_TIMEOUT" default:"15s"`
}

// SigningSecret returns the secret used to verify webhook signatures. Paystack
// signs webhooks with the account secret key unless a dedicated one is set.
func (p PaystackConfig) SigningSecret() string {
	if s := strings.TrimSpace(p.WebhookSecret); s != "" {
		return s
	}
	return p.SecretKey
}

// CallbackURL joins the frontend base URL with the payment callback path.
func (p PaystackConfig) CallbackURL() string {
	base := strings.TrimRight(strings.TrimSpace(p.FrontendURL), "/")
	path := strings.TrimSpace(p.CallbackPath)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (p PaystackConfig) validate() error {
	if _, err := url.ParseRequestURI(p.BaseURL); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvPaystackBaseURL, err)
	}
	if _, err := url.ParseRequestURI(p.FrontendURL); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvFrontendURL, err)
	}
	return nil
}

type CheckoutConfig struct {
	OrderRateLimit       int           `envconfig:"AGRIMARKET_CHECKOUT_ORDER_RATE_LIMIT" default:"10"`
	OrderRateLimitWindow time.Duration `envconfig:"AGRIMARKET_CHECKOUT_ORDER_RATE_WINDOW" default:"1m"`
	IdempotencyTTL       time.Duration `envconfig:"AGRIMARKET_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	WebhookGuardTTL      time.Duration `envconfig:"AGRIMARKET_WEBHOOK_GUARD_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGRIMARKET_AUTO_MIGRATE" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"AGRIMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"AGRIMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"AGRIMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
	ChannelPrefix  string `envconfig:"AGRIMARKET_OUTBOX_CHANNEL_PREFIX" default:"agrimarket.events"`
}

// CronConfig drives the maintenance worker.
type CronConfig struct {
	Interval              time.Duration `envconfig:"AGRIMARKET_CRON_INTERVAL" default:"15m"`
	LeaseTTL              time.Duration `envconfig:"AGRIMARKET_CRON_LEASE_TTL" default:"10m"`
	PendingOrderTTL       time.Duration `envconfig:"AGRIMARKET_PENDING_ORDER_TTL" default:"72h"`
	OrderExpiryBatchSize  int           `envconfig:"AGRIMARKET_ORDER_EXPIRY_BATCH_SIZE" default:"200"`
	OutboxRetentionPeriod time.Duration `envconfig:"AGRIMARKET_OUTBOX_RETENTION" default:"720h"`
}

type CORSConfig struct {
	AllowedOrigins []string      `envconfig:"AGRIMARKET_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	MaxAge         time.Duration `envconfig:"AGRIMARKET_CORS_MAX_AGE" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
