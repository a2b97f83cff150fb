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
	FeatureFlags FeatureFlagsConfig
	Cache        CacheConfig
	Field        FieldConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SCRAPFIELD_APP_ENV" required:"true"`
	Port         string `envconfig:"SCRAPFIELD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SCRAPFIELD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCRAPFIELD_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SCRAPFIELD_LOG_FORMAT" default:"json"`
	// Timezone drives day/week/month boundaries for order numbers and collector stats.
	Timezone string `envconfig:"SCRAPFIELD_APP_TIMEZONE" default:"Local"`
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `envconfig:"SCRAPFIELD_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the configured timezone.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

type DBConfig struct {
	DSN    string `envconfig:"SCRAPFIELD_DB_DSN"`
	Driver string `envconfig:"SCRAPFIELD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SCRAPFIELD_DB_HOST"`
	LegacyPort     int    `envconfig:"SCRAPFIELD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCRAPFIELD_DB_USER"`
	LegacyPassword string `envconfig:"SCRAPFIELD_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCRAPFIELD_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCRAPFIELD_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"SCRAPFIELD_SQLITE_PATH" default:"scrapfield.db"`

	MaxOpenConns    int           `envconfig:"SCRAPFIELD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCRAPFIELD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCRAPFIELD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCRAPFIELD_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which a statement is logged as db.slow_query.
	SlowQuery time.Duration `envconfig:"SCRAPFIELD_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCRAPFIELD_REDIS_URL"`
	Address      string        `envconfig:"SCRAPFIELD_REDIS_ADDR"`
	Password     string        `envconfig:"SCRAPFIELD_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCRAPFIELD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCRAPFIELD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCRAPFIELD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCRAPFIELD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCRAPFIELD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCRAPFIELD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SCRAPFIELD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SCRAPFIELD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SCRAPFIELD_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite        bool `envconfig:"SCRAPFIELD_USE_SQLITE" default:"false"`
	AutoMigrate      bool `envconfig:"SCRAPFIELD_AUTO_MIGRATE" default:"false"`
	DistributedLocks bool `envconfig:"SCRAPFIELD_DISTRIBUTED_LOCKS" default:"false"`
}

type CacheConfig struct {
	ReferenceTTL time.Duration `envconfig:"SCRAPFIELD_CACHE_REFERENCE_TTL" default:"5m"`
}

type FieldConfig struct {
	DefaultRadiusKm float64 `envconfig:"SCRAPFIELD_FIELD_DEFAULT_RADIUS_KM" default:"50"`
	AverageSpeedKmh float64 `envconfig:"SCRAPFIELD_FIELD_AVERAGE_SPEED_KMH" default:"40"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SCRAPFIELD_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	WorkOrdersTopic  string `envconfig:"SCRAPFIELD_PUBSUB_WORK_ORDERS_TOPIC" default:"sf-work-order-events"`
	AssignmentsTopic string `envconfig:"SCRAPFIELD_PUBSUB_ASSIGNMENTS_TOPIC" default:"sf-assignment-events"`
	// OrderedDelivery keys messages by work order so subscribers see one order's events in sequence.
	OrderedDelivery bool `envconfig:"SCRAPFIELD_PUBSUB_ORDERED_DELIVERY" default:"true"`
}

// Topics lists the distinct configured topic names.
func (p PubSubConfig) Topics() []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, t := range []string{p.WorkOrdersTopic, p.AssignmentsTopic} {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SCRAPFIELD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SCRAPFIELD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SCRAPFIELD_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"SCRAPFIELD_CRON_INTERVAL" default:"1h"`
	OutboxRetentionDays int           `envconfig:"SCRAPFIELD_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
