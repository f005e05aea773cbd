package config

// EnvPrefix scopes all environment variables consumed by envconfig.
const EnvPrefix = "CHATSERVE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv            = "CHATSERVE_APP_ENV"
	EnvPort              = "CHATSERVE_APP_PORT"
	EnvDBDSN             = "CHATSERVE_DB_DSN"
	EnvDBHost            = "CHATSERVE_DB_HOST"
	EnvDBUser            = "CHATSERVE_DB_USER"
	EnvDBName            = "CHATSERVE_DB_NAME"
	EnvRedisURL          = "CHATSERVE_REDIS_URL"
	EnvRazorpayKeyID     = "CHATSERVE_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret = "CHATSERVE_RAZORPAY_KEY_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
