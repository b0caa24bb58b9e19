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
	MercadoPago  MercadoPagoConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FERIANDO_APP_ENV" required:"true"`
	Port         string `envconfig:"FERIANDO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FERIANDO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FERIANDO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FERIANDO_DB_DSN"`
	Driver string `envconfig:"FERIANDO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FERIANDO_DB_HOST"`
	LegacyPort     int    `envconfig:"FERIANDO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FERIANDO_DB_USER"`
	LegacyPassword string `envconfig:"FERIANDO_DB_PASSWORD"`
	LegacyName     string `envconfig:"FERIANDO_DB_NAME"`
	LegacySSLMode  string `envconfig:"FERIANDO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FERIANDO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FERIANDO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FERIANDO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FERIANDO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FERIANDO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FERIANDO_REDIS_ADDR"`
	Password     string        `envconfig:"FERIANDO_REDIS_PASSWORD"`
	DB           int           `envconfig:"FERIANDO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FERIANDO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FERIANDO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FERIANDO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FERIANDO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FERIANDO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig covers token verification only; tokens are issued by the identity
// provider, never by this service.
type JWTConfig struct {
	Secret string `envconfig:"FERIANDO_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FERIANDO_JWT_ISSUER" required:"true"`
}

type MercadoPagoConfig struct {
	AccessToken     string        `envconfig:"FERIANDO_MERCADOPAGO_ACCESS_TOKEN"`
	NotificationURL string        `envconfig:"FERIANDO_MERCADOPAGO_NOTIFICATION_URL"`
	BackURLBase     string        `envconfig:"FERIANDO_MERCADOPAGO_BACK_URL_BASE"`
	RequestTimeout  time.Duration `envconfig:"FERIANDO_MERCADOPAGO_REQUEST_TIMEOUT" default:"10s"`
}

// CheckoutConfig bounds the reservation lifecycle.
type CheckoutConfig struct {
	// PendingOrderTTL is the window after which an order still waiting for a
	// payment outcome is cancelled and its reservation released.
	PendingOrderTTL     time.Duration `envconfig:"FERIANDO_CHECKOUT_PENDING_ORDER_TTL" default:"1h"`
	ExpirySweepInterval time.Duration `envconfig:"FERIANDO_CHECKOUT_EXPIRY_SWEEP_INTERVAL" default:"5m"`
	WebhookGuardTTL     time.Duration `envconfig:"FERIANDO_CHECKOUT_WEBHOOK_GUARD_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FERIANDO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FERIANDO_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FERIANDO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FERIANDO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FERIANDO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"FERIANDO_PUBSUB_ORDERS_TOPIC" default:"fd-order-events"`
	OrdersSubscription string `envconfig:"FERIANDO_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FERIANDO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FERIANDO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FERIANDO_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
