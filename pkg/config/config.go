package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Stripe        StripeConfig
	Outbox        OutboxConfig
	Billing       BillingConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TELCOBILL_APP_ENV" required:"true"`
	Port         string `envconfig:"TELCOBILL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TELCOBILL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TELCOBILL_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"TELCOBILL_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"TELCOBILL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TELCOBILL_DB_DSN"`
	Driver string `envconfig:"TELCOBILL_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TELCOBILL_DB_HOST"`
	Port     int    `envconfig:"TELCOBILL_DB_PORT" default:"5432"`
	User     string `envconfig:"TELCOBILL_DB_USER"`
	Password string `envconfig:"TELCOBILL_DB_PASSWORD"`
	Name     string `envconfig:"TELCOBILL_DB_NAME"`
	SSLMode  string `envconfig:"TELCOBILL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TELCOBILL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TELCOBILL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TELCOBILL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TELCOBILL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TELCOBILL_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TELCOBILL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TELCOBILL_REDIS_ADDR"`
	Password     string        `envconfig:"TELCOBILL_REDIS_PASSWORD"`
	DB           int           `envconfig:"TELCOBILL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TELCOBILL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TELCOBILL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TELCOBILL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TELCOBILL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TELCOBILL_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"TELCOBILL_REDIS_KEY_PREFIX" default:"tb"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TELCOBILL_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TELCOBILL_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TELCOBILL_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TELCOBILL_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TELCOBILL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TELCOBILL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TELCOBILL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TELCOBILL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TELCOBILL_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TELCOBILL_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TELCOBILL_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TELCOBILL_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TELCOBILL_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TELCOBILL_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TELCOBILL_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`

	PaymentWindow        time.Duration `envconfig:"TELCOBILL_RATE_LIMIT_PAYMENT_WINDOW" default:"10m"`
	PaymentCustomerLimit int           `envconfig:"TELCOBILL_RATE_LIMIT_PAYMENT_CUSTOMER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"TELCOBILL_AUTO_MIGRATE" default:"false"`
	SandboxPayment bool `envconfig:"TELCOBILL_SANDBOX_PAYMENTS" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TELCOBILL_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	MetricsAddr          string        `envconfig:"TELCOBILL_EVENTING_METRICS_ADDR" default:":9103"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TELCOBILL_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TELCOBILL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TELCOBILL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic                 string `envconfig:"TELCOBILL_PUBSUB_ORDERS_TOPIC" required:"true"`
	FulfillmentSubscription     string `envconfig:"TELCOBILL_PUBSUB_FULFILLMENT_SUBSCRIPTION" required:"true"`
	BillingTopic                string `envconfig:"TELCOBILL_PUBSUB_BILLING_TOPIC" required:"true"`
	NotificationSubscription    string `envconfig:"TELCOBILL_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription       string `envconfig:"TELCOBILL_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
	AnalyticsOrdersSubscription string `envconfig:"TELCOBILL_PUBSUB_ANALYTICS_ORDERS_SUBSCRIPTION"`
	InventoryTopic              string `envconfig:"TELCOBILL_PUBSUB_INVENTORY_TOPIC" default:"tb-inventory-events"`
	MaxOutstandingMessages      int    `envconfig:"TELCOBILL_PUBSUB_MAX_OUTSTANDING" default:"100"`
	ReceiveGoroutines           int    `envconfig:"TELCOBILL_PUBSUB_RECEIVE_GOROUTINES" default:"2"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"TELCOBILL_BIGQUERY_DATASET" default:"telcobill"`
	BillingEventsTable string `envconfig:"TELCOBILL_BIGQUERY_BILLING_TABLE" default:"billing_events"`
	AutoCreateTables   bool   `envconfig:"TELCOBILL_BIGQUERY_AUTO_CREATE" default:"false"`
	InsertBatchSize    int    `envconfig:"TELCOBILL_BIGQUERY_INSERT_BATCH_SIZE" default:"1"`
	InsertMaxAttempts  int    `envconfig:"TELCOBILL_BIGQUERY_INSERT_MAX_ATTEMPTS" default:"3"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TELCOBILL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TELCOBILL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TELCOBILL_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"TELCOBILL_STRIPE_API_KEY"`
	Secret   string `envconfig:"TELCOBILL_STRIPE_SECRET"`
	Env      string `envconfig:"TELCOBILL_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"TELCOBILL_STRIPE_CURRENCY" default:"inr"`
	// WebhookTolerance bounds the age of a signed webhook timestamp.
	WebhookTolerance time.Duration `envconfig:"TELCOBILL_STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether a Stripe key has been configured.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// BillingConfig holds the tunables for reservation, retry and invoicing behavior.
type BillingConfig struct {
	ReservationTTL    time.Duration `envconfig:"TELCOBILL_RESERVATION_TTL" default:"15m"`
	CoolingDownDays   int           `envconfig:"TELCOBILL_COOLING_DOWN_DAYS" default:"90"`
	PaymentMaxRetries int           `envconfig:"TELCOBILL_PAYMENT_MAX_RETRIES" default:"3"`
	PaymentRetryDelay time.Duration `envconfig:"TELCOBILL_PAYMENT_RETRY_DELAY" default:"24h"`
	InvoiceDueDays    int           `envconfig:"TELCOBILL_INVOICE_DUE_DAYS" default:"7"`
	SimActivationFee  int64         `envconfig:"TELCOBILL_SIM_ACTIVATION_FEE_MINOR" default:"4900"`
	RenewalGraceDays  int           `envconfig:"TELCOBILL_RENEWAL_GRACE_DAYS" default:"3"`
	ExpiryBatchSize   int           `envconfig:"TELCOBILL_EXPIRY_BATCH_SIZE" default:"200"`
	OperatorName      string        `envconfig:"TELCOBILL_OPERATOR_NAME" default:"TelcoBill"`
	PortingLeadDays   int           `envconfig:"TELCOBILL_PORTING_LEAD_DAYS" default:"2"`
}

func (b BillingConfig) validate() error {
	if b.ReservationTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvReservationTTL)
	}
	if b.PaymentMaxRetries < 1 {
		return fmt.Errorf("%s must be at least 1", EnvPaymentMaxRetries)
	}
	if b.CoolingDownDays < 0 || b.InvoiceDueDays < 0 {
		return fmt.Errorf("billing day counts must be non-negative")
	}
	return nil
}

type CronConfig struct {
	PaymentRetrySchedule       string        `envconfig:"TELCOBILL_CRON_PAYMENT_RETRY" default:"0 2 * * *"`
	ReservationSweepSchedule   string        `envconfig:"TELCOBILL_CRON_RESERVATION_SWEEP" default:"*/5 * * * *"`
	MsisdnRecycleSchedule      string        `envconfig:"TELCOBILL_CRON_MSISDN_RECYCLE" default:"30 3 * * *"`
	InvoiceOverdueSchedule     string        `envconfig:"TELCOBILL_CRON_INVOICE_OVERDUE" default:"0 1 * * *"`
	SubscriptionExpirySchedule string        `envconfig:"TELCOBILL_CRON_SUBSCRIPTION_EXPIRY" default:"0 * * * *"`
	OutboxRetentionSchedule    string        `envconfig:"TELCOBILL_CRON_OUTBOX_RETENTION" default:"15 4 * * *"`
	NotificationCleanup        string        `envconfig:"TELCOBILL_CRON_NOTIFICATION_CLEANUP" default:"45 4 * * 0"`
	OutboxRetention            time.Duration `envconfig:"TELCOBILL_OUTBOX_RETENTION" default:"720h"`
	DeadLetterRetention        time.Duration `envconfig:"TELCOBILL_OUTBOX_DLQ_RETENTION" default:"2160h"`
	NotificationRetention      time.Duration `envconfig:"TELCOBILL_NOTIFICATION_RETENTION" default:"2160h"`
	NotificationPurgeBatch     int           `envconfig:"TELCOBILL_NOTIFICATION_PURGE_BATCH" default:"1000"`
	LockTTL                    time.Duration `envconfig:"TELCOBILL_CRON_LOCK_TTL" default:"30m"`
	MetricsAddr                string        `envconfig:"TELCOBILL_CRON_METRICS_ADDR" default:":9102"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DriverSQLite) {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dsnPartEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
