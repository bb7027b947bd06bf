package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	App          AppConfig
	DocServer    DocServerConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Chat         ChatConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BodyLimitMB           int
	CORSOrigins           string
}

// DocServerConfig points at the document server REST API.
type DocServerConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	TranscriptTTLHours int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorPasswordHash  string
	BcryptCost            int
}

// ChatConfig tunes conversations and status polling.
type ChatConfig struct {
	PollInitialDelayMs      int
	PollStepMs              int
	PollMaxDelayMs          int
	PollTimeoutMinutes      int
	ProgressIntervalMinutes int
	IdleTTLMinutes          int
	JanitorSchedule         string
	StatusListLimit         int
	Locale                  string
	CatalogPath             string
	TimeZone                string
}

// NotificationConfig holds the webhook that receives review outcome events.
// An empty URL disables delivery.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "docchat"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8090"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BodyLimitMB:           getEnvAsInt("HTTP_BODY_LIMIT_MB", 20),
			CORSOrigins:           getEnv("HTTP_CORS_ORIGINS", "http://localhost:5173"),
		},
		DocServer: DocServerConfig{
			BaseURL:        strings.TrimRight(getEnv("DOCSERVER_BASE_URL", "http://localhost:8080"), "/"),
			TimeoutSeconds: getEnvAsInt("DOCSERVER_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:               os.Getenv("REDIS_ADDR"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 redisDB,
			TranscriptTTLHours: getEnvAsInt("REDIS_TRANSCRIPT_TTL_HOURS", 72),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorPasswordHash:  os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Chat: ChatConfig{
			PollInitialDelayMs:      getEnvAsInt("CHAT_POLL_INITIAL_DELAY_MS", 2000),
			PollStepMs:              getEnvAsInt("CHAT_POLL_STEP_MS", 3000),
			PollMaxDelayMs:          getEnvAsInt("CHAT_POLL_MAX_DELAY_MS", 9000000),
			PollTimeoutMinutes:      getEnvAsInt("CHAT_POLL_TIMEOUT_MINUTES", 24*60),
			ProgressIntervalMinutes: getEnvAsInt("CHAT_PROGRESS_INTERVAL_MINUTES", 5),
			IdleTTLMinutes:          getEnvAsInt("CHAT_IDLE_TTL_MINUTES", 120),
			JanitorSchedule:         getEnv("CHAT_JANITOR_SCHEDULE", "@every 1m"),
			StatusListLimit:         getEnvAsInt("CHAT_STATUS_LIST_LIMIT", 10),
			Locale:                  getEnv("CHAT_LOCALE", "en"),
			CatalogPath:             os.Getenv("CHAT_CATALOG_PATH"),
			TimeZone:                getEnv("CHAT_TIME_ZONE", "Asia/Seoul"),
		},
		Notification: NotificationConfig{
			WebhookURL:            strings.TrimSpace(getEnv("NOTIFY_WEBHOOK_URL", "")),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-request timeout for document server calls.
func (d DocServerConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// TranscriptTTL returns how long mirrored transcripts are kept in Redis.
func (r RedisConfig) TranscriptTTL() time.Duration {
	return time.Duration(r.TranscriptTTLHours) * time.Hour
}

// PollInitialDelay returns the first wait between status polls.
func (c ChatConfig) PollInitialDelay() time.Duration {
	return time.Duration(c.PollInitialDelayMs) * time.Millisecond
}

// PollStep returns the linear backoff increment.
func (c ChatConfig) PollStep() time.Duration {
	return time.Duration(c.PollStepMs) * time.Millisecond
}

// PollMaxDelay returns the backoff ceiling.
func (c ChatConfig) PollMaxDelay() time.Duration {
	return time.Duration(c.PollMaxDelayMs) * time.Millisecond
}

// PollTimeout returns the overall polling budget.
func (c ChatConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMinutes) * time.Minute
}

// ProgressInterval returns the minimum gap between progress notices.
func (c ChatConfig) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMinutes) * time.Minute
}

// IdleTTL returns how long an untouched conversation is kept in memory.
func (c ChatConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLMinutes) * time.Minute
}

// Location resolves the display time zone, falling back to UTC.
func (c ChatConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WebhookTimeout bounds a single webhook delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
