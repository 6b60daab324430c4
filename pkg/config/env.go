package config

const (
	EnvPrefix = "FULFILLMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "FULFILLMENT_APP_ENV"
	EnvPort           = "FULFILLMENT_APP_PORT"
	EnvDBDSN          = "FULFILLMENT_DB_DSN"
	EnvDBHost         = "FULFILLMENT_DB_HOST"
	EnvDBUser         = "FULFILLMENT_DB_USER"
	EnvDBName         = "FULFILLMENT_DB_NAME"
	EnvDBTxTimeout    = "FULFILLMENT_DB_TX_TIMEOUT"
	EnvRedisURL       = "FULFILLMENT_REDIS_URL"
	EnvJWTSecret      = "FULFILLMENT_JWT_SECRET"
	EnvJWTIssuer      = "FULFILLMENT_JWT_ISSUER"
	EnvShippingCharge = "FULFILLMENT_ORDERS_SHIPPING_CHARGE"
	EnvReturnWindow   = "FULFILLMENT_ORDERS_RETURN_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
