package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string
	Logging      LoggingConfig
	Telemetry    TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Auth      AuthConfig
	Webhook   WebhookConfig
	Referral  ReferralConfig
	Scheduler SchedulerConfig
}

type LoggingConfig struct {
	Level  string
	Format string
	// RedactKeys lists zap field keys whose values are masked as email addresses.
	RedactKeys []string
}

type TelemetryConfig struct {
	Enabled       bool
	Protocol      string
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	// Invitations a referrer may issue per hour, with a burst allowance.
	InvitesPerHour float64
	InviteBurst    int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	MaxAttempts  int
}

type AuthConfig struct {
	JWTSecret     string
	AcceptedSkew  time.Duration
	SystemSubject string
}

type WebhookConfig struct {
	// TokenHash is a bcrypt hash of the shared token the ESP sends in X-Webhook-Token.
	TokenHash string
}

type ReferralConfig struct {
	LinkBaseURL string
}

type SchedulerConfig struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	// LockTTL bounds how long a crashed run can keep others out.
	LockTTL time.Duration
	// DevTrigger exposes the operator-only manual run endpoint.
	DevTrigger bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "pioneer"),
		AppVersion:   getenv("SERVICE_VERSION", getenv("APP_VERSION", "0.1.0")),
		Environment:  getenv("DEPLOYMENT_ENV", getenv("ENVIRONMENT", "development")),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		Logging: LoggingConfig{
			Level:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			Format:     strings.ToLower(getenv("LOG_FORMAT", "json")),
			RedactKeys: getenvList("LOG_REDACT_KEYS"),
		},
		Telemetry: TelemetryConfig{
			Enabled:       getenvBool("OTEL_ENABLED", false),
			Protocol:      strings.ToLower(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "pioneer"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getenvBool("RATE_LIMIT_ENABLED", false),
			InvitesPerHour: getenvFloat("RATE_LIMIT_INVITES_PER_HOUR", 50),
			InviteBurst:    getenvInt("RATE_LIMIT_INVITE_BURST", 20),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "Pioneer <no-reply@pioneer.local>"),
			MaxAttempts:  getenvInt("SMTP_MAX_ATTEMPTS", 3),
		},
		Auth: AuthConfig{
			JWTSecret:     strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
			AcceptedSkew:  time.Duration(getenvInt("AUTH_JWT_SKEW_SECONDS", 30)) * time.Second,
			SystemSubject: getenv("AUTH_SYSTEM_SUBJECT", "system"),
		},
		Webhook: WebhookConfig{
			TokenHash: strings.TrimSpace(getenv("WEBHOOK_TOKEN_HASH", "")),
		},
		Referral: ReferralConfig{
			LinkBaseURL: strings.TrimRight(getenv("REFERRAL_LINK_BASE_URL", "https://pioneer.local/join"), "/"),
		},
		Scheduler: SchedulerConfig{
			RunInterval: time.Duration(getenvInt("SCHEDULER_RUN_INTERVAL_MINUTES", 24*60)) * time.Minute,
			BatchSize:   getenvInt("SCHEDULER_BATCH_SIZE", 100),
			JobTimeout:  time.Duration(getenvInt("SCHEDULER_JOB_TIMEOUT_SECONDS", 600)) * time.Second,
			LockTTL:     time.Duration(getenvInt("SCHEDULER_LOCK_TTL_SECONDS", 1800)) * time.Second,
			DevTrigger:  getenvBool("SCHEDULER_DEV_TRIGGER", false),
		},
	}
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
