package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Storage      StorageConfig
	Stripe       StripeConfig
	SMTP         SMTPConfig
	Orders       OrdersConfig
	Reconciler   ReconcilerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Orders.ShippingChargeAmount(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FULFILLMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"FULFILLMENT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FULFILLMENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FULFILLMENT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FULFILLMENT_LOG_FORMAT" default:"json"`

	// CORSOrigins is a comma separated list; empty allows the local dev hosts.
	CORSOrigins []string `envconfig:"FULFILLMENT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FULFILLMENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FULFILLMENT_DB_DSN"`
	Driver string `envconfig:"FULFILLMENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FULFILLMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"FULFILLMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FULFILLMENT_DB_USER"`
	LegacyPassword string `envconfig:"FULFILLMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"FULFILLMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"FULFILLMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FULFILLMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FULFILLMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// TxTimeout bounds every unit of work; LockTimeout bounds row lock waits inside it.
	TxTimeout   time.Duration `envconfig:"FULFILLMENT_DB_TX_TIMEOUT" default:"10s"`
	LockTimeout time.Duration `envconfig:"FULFILLMENT_DB_LOCK_TIMEOUT" default:"3s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FULFILLMENT_REDIS_URL"`
	Address      string        `envconfig:"FULFILLMENT_REDIS_ADDR"`
	Password     string        `envconfig:"FULFILLMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FULFILLMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FULFILLMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FULFILLMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FULFILLMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FULFILLMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FULFILLMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"FULFILLMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FULFILLMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FULFILLMENT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig throttles order placement and return requests per user.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"FULFILLMENT_RATE_LIMIT_WINDOW" default:"1m"`
	OrderCreates  int           `envconfig:"FULFILLMENT_RATE_LIMIT_ORDER_CREATES" default:"5"`
	ReturnCreates int           `envconfig:"FULFILLMENT_RATE_LIMIT_RETURN_CREATES" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FULFILLMENT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"FULFILLMENT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	// RequestIdempotencyTTL bounds how long an Idempotency-Key header is remembered.
	RequestIdempotencyTTL time.Duration `envconfig:"FULFILLMENT_REQUEST_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FULFILLMENT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FULFILLMENT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FULFILLMENT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FulfillmentTopic         string `envconfig:"FULFILLMENT_PUBSUB_TOPIC" default:"fulfillment-events"`
	NotificationSubscription string `envconfig:"FULFILLMENT_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"fulfillment-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FULFILLMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FULFILLMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FULFILLMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StorageConfig struct {
	Endpoint        string `envconfig:"FULFILLMENT_STORAGE_ENDPOINT"`
	AccessKeyID     string `envconfig:"FULFILLMENT_STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"FULFILLMENT_STORAGE_SECRET_ACCESS_KEY"`
	UseSSL          bool   `envconfig:"FULFILLMENT_STORAGE_USE_SSL" default:"true"`
	Bucket          string `envconfig:"FULFILLMENT_STORAGE_BUCKET" default:"return-evidence"`
	PublicBaseURL   string `envconfig:"FULFILLMENT_STORAGE_PUBLIC_BASE_URL"`
	MaxUploadMB     int    `envconfig:"FULFILLMENT_STORAGE_MAX_UPLOAD_MB" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"FULFILLMENT_STRIPE_API_KEY"`
	Env    string `envconfig:"FULFILLMENT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SMTPConfig struct {
	Host     string `envconfig:"FULFILLMENT_SMTP_HOST"`
	Port     int    `envconfig:"FULFILLMENT_SMTP_PORT" default:"587"`
	Username string `envconfig:"FULFILLMENT_SMTP_USERNAME"`
	Password string `envconfig:"FULFILLMENT_SMTP_PASSWORD"`
	From     string `envconfig:"FULFILLMENT_SMTP_FROM" default:"orders@example.com"`
}

type OrdersConfig struct {
	ShippingCharge        string        `envconfig:"FULFILLMENT_ORDERS_SHIPPING_CHARGE" default:"99.00"`
	ReturnWindow          time.Duration `envconfig:"FULFILLMENT_ORDERS_RETURN_WINDOW" default:"168h"`
	NumberPrefix          string        `envconfig:"FULFILLMENT_ORDERS_NUMBER_PREFIX" default:"ORD"`
	NumberConflictRetries int           `envconfig:"FULFILLMENT_ORDERS_NUMBER_CONFLICT_RETRIES" default:"5"`
}

// ShippingChargeAmount parses the configured flat shipping charge.
func (o OrdersConfig) ShippingChargeAmount() (decimal.Decimal, error) {
	raw := strings.TrimSpace(o.ShippingCharge)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvShippingCharge, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvShippingCharge)
	}
	return amount, nil
}

type ReconcilerConfig struct {
	BatchSize      int `envconfig:"FULFILLMENT_RECONCILER_BATCH_SIZE" default:"100"`
	// PushgatewayURL receives the run metrics of one-shot jobs when set.
	PushgatewayURL string `envconfig:"FULFILLMENT_METRICS_PUSHGATEWAY_URL"`
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
