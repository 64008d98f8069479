package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	Orders        OrdersConfig
	HTTPRateLimit HTTPRateLimitConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Metrics       MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cron.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOP_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"SHOP_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"SHOP_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"SHOP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"SHOP_DB_DSN"`
	Driver string `envconfig:"SHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOP_DB_USER"`
	LegacyPassword string `envconfig:"SHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SHOP_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify access tokens minted by the auth service.
type JWTConfig struct {
	Secret            string `envconfig:"SHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOP_JWT_EXPIRATION_MINUTES" default:"60"`
	// Leeway absorbs clock drift between the identity service and this API.
	Leeway time.Duration `envconfig:"SHOP_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOP_AUTO_MIGRATE" default:"false"`
	// COD orders are marked paid when they reach delivered.
	SettleCODOnDelivery bool `envconfig:"SHOP_SETTLE_COD_ON_DELIVERY" default:"true"`
}

// CheckoutConfig drives the server-side pricing applied at order creation.
type CheckoutConfig struct {
	Currency                 string        `envconfig:"SHOP_CHECKOUT_CURRENCY" default:"VND"`
	FlatShippingFeeCents     int64         `envconfig:"SHOP_CHECKOUT_FLAT_SHIPPING_CENTS" default:"3000000"`
	FreeShippingThresholdCts int64         `envconfig:"SHOP_CHECKOUT_FREE_SHIPPING_THRESHOLD_CENTS" default:"50000000"`
	RateLimitPerWindow       int           `envconfig:"SHOP_CHECKOUT_RATE_LIMIT" default:"10"`
	RateLimitWindow          time.Duration `envconfig:"SHOP_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
}

// ShippingFeeFor returns the flat fee unless the subtotal reaches the free shipping threshold.
func (c CheckoutConfig) ShippingFeeFor(subTotalCents int64) int64 {
	if c.FreeShippingThresholdCts > 0 && subTotalCents >= c.FreeShippingThresholdCts {
		return 0
	}
	if c.FlatShippingFeeCents < 0 {
		return 0
	}
	return c.FlatShippingFeeCents
}

func (c CheckoutConfig) validate() error {
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("%s is required", EnvCheckoutCurrency)
	}
	if c.FlatShippingFeeCents < 0 {
		return fmt.Errorf("%s must be >= 0", EnvCheckoutFlatShipping)
	}
	return nil
}

type OrdersConfig struct {
	TransitionMaxRetries int           `envconfig:"SHOP_ORDER_TRANSITION_MAX_RETRIES" default:"3"`
	PendingTTL           time.Duration `envconfig:"SHOP_ORDER_PENDING_TTL" default:"168h"`
}

type HTTPRateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"SHOP_HTTP_RATE_LIMIT_RPS" default:"20"`
	Burst             int     `envconfig:"SHOP_HTTP_RATE_LIMIT_BURST" default:"40"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SHOP_GCP_PROJECT_ID"`
	// Inline service account JSON wins over a credentials file; with neither set
	// the client falls back to application default credentials.
	CredentialsJSON        string `envconfig:"SHOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SHOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic    string        `envconfig:"SHOP_PUBSUB_ORDERS_TOPIC" default:"shop-order-events"`
	CatalogTopic   string        `envconfig:"SHOP_PUBSUB_CATALOG_TOPIC" default:"shop-catalog-events"`
	PublishTimeout time.Duration `envconfig:"SHOP_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"SHOP_KAFKA_BROKERS"`
	ClientID     string        `envconfig:"SHOP_KAFKA_CLIENT_ID" default:"shop-outbox"`
	BatchTimeout time.Duration `envconfig:"SHOP_KAFKA_BATCH_TIMEOUT" default:"50ms"`
	RequiredAcks int           `envconfig:"SHOP_KAFKA_REQUIRED_ACKS" default:"-1"`
	MaxAttempts  int           `envconfig:"SHOP_KAFKA_MAX_ATTEMPTS" default:"3"`
}

type OutboxConfig struct {
	Sink           string        `envconfig:"SHOP_OUTBOX_SINK" default:"pubsub"`
	BatchSize      int           `envconfig:"SHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"SHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"SHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"SHOP_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"SHOP_CRON_INTERVAL" default:"5m"`
	LockTTL    time.Duration `envconfig:"SHOP_CRON_LOCK_TTL" default:"4m"`
	JobTimeout time.Duration `envconfig:"SHOP_CRON_JOB_TIMEOUT" default:"2m"`
}

// validate keeps the lock shorter than a cycle so a crashed worker cannot
// block the next one.
func (c CronConfig) validate() error {
	if c.Interval <= 0 || c.LockTTL <= 0 {
		return fmt.Errorf("cron interval and lock ttl must be positive")
	}
	if c.LockTTL >= c.Interval {
		return fmt.Errorf("SHOP_CRON_LOCK_TTL (%s) must be shorter than SHOP_CRON_INTERVAL (%s)", c.LockTTL, c.Interval)
	}
	return nil
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"SHOP_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"SHOP_METRICS_PATH" default:"/metrics"`

	// WorkerAddr is where worker binaries expose metrics; the API serves them on its own port.
	WorkerAddr string `envconfig:"SHOP_METRICS_WORKER_ADDR" default:":9091"`
}

// ensureDSN assembles a postgres URL from the discrete SHOP_DB_* settings
// when SHOP_DB_DSN is not given.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		dsn.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
