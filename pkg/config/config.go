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
	Firebase     FirebaseConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Sheets       SheetsConfig
	AI           AIConfig
	Alerts       AlertsConfig
	Uploads      UploadsConfig
	Chat         ChatConfig
	Sendgrid     SendgridConfig
	Cron         CronConfig
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
	Env          string `envconfig:"FINXAN_APP_ENV" required:"true"`
	Port         string `envconfig:"FINXAN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FINXAN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FINXAN_LOG_WARN_STACK" default:"false"`
	FrontendURL  string `envconfig:"FINXAN_FRONTEND_URL" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FINXAN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FINXAN_DB_DSN"`
	Driver string `envconfig:"FINXAN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FINXAN_DB_HOST"`
	LegacyPort     int    `envconfig:"FINXAN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FINXAN_DB_USER"`
	LegacyPassword string `envconfig:"FINXAN_DB_PASSWORD"`
	LegacyName     string `envconfig:"FINXAN_DB_NAME"`
	LegacySSLMode  string `envconfig:"FINXAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FINXAN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FINXAN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FINXAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FINXAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FINXAN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FINXAN_REDIS_ADDR"`
	Password     string        `envconfig:"FINXAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"FINXAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FINXAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FINXAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FINXAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FINXAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FINXAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// FirebaseConfig configures ID token verification.
type FirebaseConfig struct {
	ProjectID string `envconfig:"FINXAN_FIREBASE_PROJECT_ID" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FINXAN_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FINXAN_AUTO_MIGRATE" default:"false"`
	AlertEmails bool `envconfig:"FINXAN_FEATURE_ALERT_EMAILS" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FINXAN_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FINXAN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FINXAN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AlertsTopic        string `envconfig:"FINXAN_PUBSUB_ALERTS_TOPIC" default:"finxan-alert-events"`
	AlertsSubscription string `envconfig:"FINXAN_PUBSUB_ALERTS_SUBSCRIPTION" required:"true"`
}

// SheetsConfig configures the read-only Google Sheets client.
type SheetsConfig struct {
	APIKey       string        `envconfig:"FINXAN_GOOGLE_SHEETS_API_KEY"`
	Endpoint     string        `envconfig:"FINXAN_GOOGLE_SHEETS_ENDPOINT"`
	FetchTimeout time.Duration `envconfig:"FINXAN_GOOGLE_SHEETS_TIMEOUT" default:"15s"`
	PreviewRange string        `envconfig:"FINXAN_GOOGLE_SHEETS_PREVIEW_RANGE" default:"A1:Z5"`
}

// AIConfig points at the external chat completion service.
type AIConfig struct {
	ServiceURL string        `envconfig:"FINXAN_AI_SERVICE_URL" default:"http://localhost:8000"`
	Timeout    time.Duration `envconfig:"FINXAN_AI_TIMEOUT" default:"30s"`
	Model      string        `envconfig:"FINXAN_AI_MODEL" default:"gemini-2.0-flash-exp"`
}

// AlertsConfig controls threshold defaults used by scans and dashboards.
type AlertsConfig struct {
	DefaultThreshold     int           `envconfig:"FINXAN_ALERTS_DEFAULT_THRESHOLD" default:"10"`
	CriticalBelow        int           `envconfig:"FINXAN_ALERTS_CRITICAL_BELOW" default:"5"`
	DisplayThreshold     int           `envconfig:"FINXAN_ALERTS_DISPLAY_THRESHOLD" default:"20"`
	ScanLockTTL          time.Duration `envconfig:"FINXAN_ALERTS_SCAN_LOCK_TTL" default:"2m"`
	NotificationDeadline time.Duration `envconfig:"FINXAN_ALERTS_NOTIFY_TIMEOUT" default:"10s"`
}

type UploadsConfig struct {
	MaxUploadMB  int           `envconfig:"FINXAN_MAX_UPLOAD_MB" default:"10"`
	ParseTimeout time.Duration `envconfig:"FINXAN_UPLOAD_PARSE_TIMEOUT" default:"2m"`
}

// MaxUploadBytes converts the configured limit into bytes.
func (u UploadsConfig) MaxUploadBytes() int64 {
	if u.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(u.MaxUploadMB) << 20
}

type ChatConfig struct {
	RateLimitWindow time.Duration `envconfig:"FINXAN_CHAT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimit       int           `envconfig:"FINXAN_CHAT_RATE_LIMIT" default:"20"`
	StaleCacheTTL   time.Duration `envconfig:"FINXAN_CHAT_STALE_CACHE_TTL" default:"24h"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"FINXAN_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"FINXAN_SENDGRID_FROM_EMAIL"`
	BaseURL     string `envconfig:"FINXAN_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
}

// Enabled reports whether outbound email is configured.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.DefaultFrom) != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FINXAN_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"FINXAN_CRON_LOCK_TTL" default:"55m"`
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
