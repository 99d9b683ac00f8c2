package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "FINXAN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "FINXAN_APP_ENV"
	EnvPort                   = "FINXAN_APP_PORT"
	EnvDBDSN                  = "FINXAN_DB_DSN"
	EnvDBHost                 = "FINXAN_DB_HOST"
	EnvDBUser                 = "FINXAN_DB_USER"
	EnvDBName                 = "FINXAN_DB_NAME"
	EnvDBPassword             = "FINXAN_DB_PASSWORD"
	EnvRedisURL               = "FINXAN_REDIS_URL"
	EnvFirebaseProjectID      = "FINXAN_FIREBASE_PROJECT_ID"
	EnvGCPProjectID           = "FINXAN_GCP_PROJECT_ID"
	EnvPubSubAlertsSub        = "FINXAN_PUBSUB_ALERTS_SUBSCRIPTION"
	EnvPubSubAlertsTopic      = "FINXAN_PUBSUB_ALERTS_TOPIC"
	EnvSheetsAPIKey           = "FINXAN_GOOGLE_SHEETS_API_KEY"
	EnvAIServiceURL           = "FINXAN_AI_SERVICE_URL"
	EnvAITimeout              = "FINXAN_AI_TIMEOUT"
	EnvAlertsDefaultThreshold = "FINXAN_ALERTS_DEFAULT_THRESHOLD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
