package config

const (
	EnvPrefix = "TELCOBILL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv   = "TELCOBILL_APP_ENV"
	EnvPort     = "TELCOBILL_APP_PORT"
	EnvLogLevel = "TELCOBILL_LOG_LEVEL"

	EnvDBDSN    = "TELCOBILL_DB_DSN"
	EnvDBDriver = "TELCOBILL_DB_DRIVER"
	EnvDBHost   = "TELCOBILL_DB_HOST"
	EnvDBUser   = "TELCOBILL_DB_USER"
	EnvDBName   = "TELCOBILL_DB_NAME"

	EnvRedisURL = "TELCOBILL_REDIS_URL"

	EnvJWTSecret              = "TELCOBILL_JWT_SECRET"
	EnvJWTIssuer              = "TELCOBILL_JWT_ISSUER"
	EnvJWTExpMins             = "TELCOBILL_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "TELCOBILL_REFRESH_TOKEN_TTL_MINUTES"

	EnvGCPProjectID = "TELCOBILL_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic     = "TELCOBILL_PUBSUB_ORDERS_TOPIC"
	EnvPubSubFulfillmentSub  = "TELCOBILL_PUBSUB_FULFILLMENT_SUBSCRIPTION"
	EnvPubSubBillingTopic    = "TELCOBILL_PUBSUB_BILLING_TOPIC"
	EnvPubSubNotificationSub = "TELCOBILL_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubAnalyticsSub    = "TELCOBILL_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvPubSubInventoryTopic  = "TELCOBILL_PUBSUB_INVENTORY_TOPIC"
	EnvReservationTTL        = "TELCOBILL_RESERVATION_TTL"
	EnvPaymentMaxRetries     = "TELCOBILL_PAYMENT_MAX_RETRIES"
	EnvCronPaymentRetry      = "TELCOBILL_CRON_PAYMENT_RETRY"
)

var dsnPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
