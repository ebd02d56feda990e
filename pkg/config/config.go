package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "webshop"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "WEBSHOP_DB_DSN"
	EnvDBHost = "WEBSHOP_DB_HOST"
	EnvDBUser = "WEBSHOP_DB_USER"
	EnvDBName = "WEBSHOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Mail         MailConfig
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
	Env          string `envconfig:"WEBSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"WEBSHOP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"WEBSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WEBSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WEBSHOP_DB_DSN"`
	Driver string `envconfig:"WEBSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WEBSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"WEBSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WEBSHOP_DB_USER"`
	LegacyPassword string `envconfig:"WEBSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"WEBSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"WEBSHOP_DB_SSLMODE" default:"disable"`

	// LockTimeout is applied per transaction with SET LOCAL so contended
	// row locks fail fast instead of queueing. Zero disables it.
	LockTimeout time.Duration `envconfig:"WEBSHOP_DB_LOCK_TIMEOUT" default:"3s"`

	MaxOpenConns    int           `envconfig:"WEBSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WEBSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WEBSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WEBSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WEBSHOP_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"WEBSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WEBSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WEBSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WEBSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WEBSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CheckoutConfig tunes the checkout transaction coordinator.
type CheckoutConfig struct {
	LockTimeout   time.Duration `envconfig:"WEBSHOP_CHECKOUT_LOCK_TIMEOUT" default:"5s"`
	RetryOnceOnTx bool          `envconfig:"WEBSHOP_CHECKOUT_RETRY_TRANSIENT" default:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WEBSHOP_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"WEBSHOP_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"WEBSHOP_PUBSUB_ORDERS_TOPIC" default:"webshop-order-events"`
	OrdersSubscription string `envconfig:"WEBSHOP_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"WEBSHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"WEBSHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"WEBSHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MailConfig struct {
	From    string `envconfig:"WEBSHOP_MAIL_FROM" default:"noreply@webshop.local"`
	DryRun  bool   `envconfig:"WEBSHOP_MAIL_DRY_RUN" default:"true"`
	SMTPURL string `envconfig:"WEBSHOP_MAIL_SMTP_URL"`
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
