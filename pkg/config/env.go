package config

// EnvPrefix is empty because every field carries its fully qualified variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SCRAPFIELD_APP_ENV"
	EnvPort     = "SCRAPFIELD_APP_PORT"
	EnvTimezone = "SCRAPFIELD_APP_TIMEZONE"

	EnvDBDSN  = "SCRAPFIELD_DB_DSN"
	EnvDBHost = "SCRAPFIELD_DB_HOST"
	EnvDBPort = "SCRAPFIELD_DB_PORT"
	EnvDBUser = "SCRAPFIELD_DB_USER"
	EnvDBPass = "SCRAPFIELD_DB_PASSWORD"
	EnvDBName = "SCRAPFIELD_DB_NAME"

	EnvUseSQLite = "SCRAPFIELD_USE_SQLITE"
	EnvRedisURL  = "SCRAPFIELD_REDIS_URL"

	EnvJWTSecret = "SCRAPFIELD_JWT_SECRET"
	EnvJWTIssuer = "SCRAPFIELD_JWT_ISSUER"

	EnvCacheReferenceTTL = "SCRAPFIELD_CACHE_REFERENCE_TTL"
	EnvFieldRadiusKm     = "SCRAPFIELD_FIELD_DEFAULT_RADIUS_KM"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
