package config

// EnvPrefix is passed to envconfig; every field carries its full variable name in the tag.
const EnvPrefix = "SHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SHOP_APP_ENV"
	EnvPort     = "SHOP_APP_PORT"
	EnvLogLevel = "SHOP_LOG_LEVEL"

	EnvDBDSN  = "SHOP_DB_DSN"
	EnvDBHost = "SHOP_DB_HOST"
	EnvDBUser = "SHOP_DB_USER"
	EnvDBName = "SHOP_DB_NAME"

	EnvRedisURL = "SHOP_REDIS_URL"

	EnvJWTSecret = "SHOP_JWT_SECRET"
	EnvJWTIssuer = "SHOP_JWT_ISSUER"

	EnvCheckoutCurrency     = "SHOP_CHECKOUT_CURRENCY"
	EnvCheckoutFlatShipping = "SHOP_CHECKOUT_FLAT_SHIPPING_CENTS"

	EnvOrderPendingTTL = "SHOP_ORDER_PENDING_TTL"
	EnvOutboxSink      = "SHOP_OUTBOX_SINK"
	EnvKafkaBrokers    = "SHOP_KAFKA_BROKERS"
)
