package config

const (
	EnvPrefix = "POSYNC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv          = "POSYNC_APP_ENV"
	EnvDBDSN           = "POSYNC_DB_DSN"
	EnvDBHost          = "POSYNC_DB_HOST"
	EnvDBUser          = "POSYNC_DB_USER"
	EnvDBName          = "POSYNC_DB_NAME"
	EnvRedisURL        = "POSYNC_REDIS_URL"
	EnvPortalBaseURL   = "POSYNC_PORTAL_BASE_URL"
	EnvPortalBatchSize = "POSYNC_PORTAL_BATCH_SIZE"
	EnvTenants         = "POSYNC_TENANTS"
	EnvUseSQLite       = "POSYNC_USE_SQLITE"

	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"

	tenantPrefixFormat = "POSYNC_TENANT_%s"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
