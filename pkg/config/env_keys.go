package config

// EnvPrefix is passed to envconfig; individual keys below are spelled out so
// tests and deploy manifests reference a single source of truth.
const EnvPrefix = "FERIANDO"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "FERIANDO_APP_ENV"
	EnvPort     = "FERIANDO_APP_PORT"
	EnvDBDSN    = "FERIANDO_DB_DSN"
	EnvDBHost   = "FERIANDO_DB_HOST"
	EnvDBUser   = "FERIANDO_DB_USER"
	EnvDBName   = "FERIANDO_DB_NAME"
	EnvRedisURL = "FERIANDO_REDIS_URL"

	EnvJWTSecret = "FERIANDO_JWT_SECRET"
	EnvJWTIssuer = "FERIANDO_JWT_ISSUER"

	EnvMercadoPagoAccessToken = "FERIANDO_MERCADOPAGO_ACCESS_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
