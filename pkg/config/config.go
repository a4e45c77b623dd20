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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Portal       PortalConfig
	Sync         SyncConfig
	Ops          OpsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Portal.validate(); err != nil {
		return nil, err
	}
	if len(cfg.Sync.TenantIDs()) == 0 {
		return nil, fmt.Errorf("%s must list at least one database id", EnvTenants)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POSYNC_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"POSYNC_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"POSYNC_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"POSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POSYNC_SERVICE_KIND" default:"po-sync"`
}

// DBConfig points at the ledger store, which is separate from every tenant's ERP database.
type DBConfig struct {
	DSN    string `envconfig:"POSYNC_DB_DSN"`
	Driver string `envconfig:"POSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"POSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POSYNC_DB_USER"`
	LegacyPassword string `envconfig:"POSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"POSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"POSYNC_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"POSYNC_DB_SQLITE_PATH" default:"posync.db"`

	MaxOpenConns    int           `envconfig:"POSYNC_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"POSYNC_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"POSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POSYNC_REDIS_URL" required:"true"`
	Address      string        `envconfig:"POSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"POSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSYNC_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"POSYNC_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"POSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"POSYNC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"POSYNC_AUTO_MIGRATE" default:"false"`
}

type PortalConfig struct {
	BaseURL        string        `envconfig:"POSYNC_PORTAL_BASE_URL" required:"true"`
	SubmitTimeout  time.Duration `envconfig:"POSYNC_PORTAL_SUBMIT_TIMEOUT" default:"5m"`
	BatchSize      int           `envconfig:"POSYNC_PORTAL_BATCH_SIZE" default:"50"`
	BatchDelay     time.Duration `envconfig:"POSYNC_PORTAL_BATCH_DELAY" default:"5s"`
	DuplicateCodes []string      `envconfig:"POSYNC_PORTAL_DUPLICATE_CODES" default:"PURCHASE_ORDER_DUPLICATED"`
}

func (p PortalConfig) validate() error {
	u, err := url.Parse(strings.TrimSpace(p.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url", EnvPortalBaseURL)
	}
	if p.BatchSize < 0 {
		return fmt.Errorf("%s must not be negative", EnvPortalBatchSize)
	}
	return nil
}

type SyncConfig struct {
	Tenants            []string      `envconfig:"POSYNC_TENANTS" required:"true"`
	Interval           time.Duration `envconfig:"POSYNC_SYNC_INTERVAL" default:"15m"`
	LockTTL            time.Duration `envconfig:"POSYNC_SYNC_LOCK_TTL" default:"2h"`
	MaxParallelTenants int           `envconfig:"POSYNC_SYNC_MAX_PARALLEL_TENANTS" default:"4"`
	LookbackDays       int           `envconfig:"POSYNC_SYNC_LOOKBACK_DAYS" default:"30"`
	MetadataMaxIndex   int           `envconfig:"POSYNC_SYNC_METADATA_MAX_INDEX" default:"50"`
	OrdersQueryFile    string        `envconfig:"POSYNC_SYNC_ORDERS_QUERY_FILE"`
}

// TenantIDs returns the configured database ids, trimmed and de-duplicated in order.
func (s SyncConfig) TenantIDs() []string {
	seen := make(map[string]struct{}, len(s.Tenants))
	ids := make([]string, 0, len(s.Tenants))
	for _, raw := range s.Tenants {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

type OpsConfig struct {
	Port string `envconfig:"POSYNC_OPS_PORT" default:"9090"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		db.DSN = db.SQLitePath
		return nil
	}
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
