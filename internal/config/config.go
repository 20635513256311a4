package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/campusdesk/servicedesk/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	NATS         NATSConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	SLA          SLAConfig
	Workflow     WorkflowConfig
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
	Addr     string
	Password string
	DB       int
}

// NATSConfig holds the optional event-bridge endpoint. Empty URL disables it.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SLAConfig is the typed resolution-hour table consulted at ticket creation.
// Category overrides win over per-priority defaults; DefaultHours is the
// terminal fallback.
type SLAConfig struct {
	DefaultHours  int
	PriorityHours map[domain.TicketPriority]int
	CategoryHours map[string]map[domain.TicketPriority]int
	TicketPrefix  string
}

// WorkflowConfig carries the assignment and monitoring policy constants.
type WorkflowConfig struct {
	MaxActiveTickets    int
	SLAWarningThreshold float64
	SweepInterval       time.Duration
	SweepLockTTL        time.Duration
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	warningThreshold, err := strconv.ParseFloat(getEnv("SLA_WARNING_THRESHOLD", "0.8"), 64)
	if err != nil || warningThreshold <= 0 || warningThreshold >= 1 {
		return nil, fmt.Errorf("invalid SLA_WARNING_THRESHOLD")
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "campus-servicedesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
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
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "servicedesk.ticket"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		SLA: loadSLAConfig(),
		Workflow: WorkflowConfig{
			MaxActiveTickets:    getEnvAsInt("ASSIGN_MAX_ACTIVE_TICKETS", 5),
			SLAWarningThreshold: warningThreshold,
			SweepInterval:       time.Duration(getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 120)) * time.Second,
			SweepLockTTL:        time.Duration(getEnvAsInt("SLA_SWEEP_LOCK_TTL_SECONDS", 110)) * time.Second,
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "servicedesk@university.ac.id"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

func loadSLAConfig() SLAConfig {
	cfg := SLAConfig{
		DefaultHours: getEnvAsInt("SLA_DEFAULT_HOURS", 24),
		PriorityHours: map[domain.TicketPriority]int{
			domain.TicketPriorityLow:    getEnvAsInt("SLA_HOURS_LOW", 72),
			domain.TicketPriorityMedium: getEnvAsInt("SLA_HOURS_MEDIUM", 24),
			domain.TicketPriorityHigh:   getEnvAsInt("SLA_HOURS_HIGH", 8),
			domain.TicketPriorityUrgent: getEnvAsInt("SLA_HOURS_URGENT", 2),
		},
		CategoryHours: map[string]map[domain.TicketPriority]int{},
		TicketPrefix:  getEnv("TICKET_NUMBER_PREFIX", "TIK"),
	}

	// SLA_CATEGORY_OVERRIDES holds comma-separated category:priority:hours triples,
	// e.g. "Academic:urgent:2,Facility:high:12".
	raw := os.Getenv("SLA_CATEGORY_OVERRIDES")
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 {
			continue
		}
		hours, err := strconv.Atoi(parts[2])
		if err != nil || hours <= 0 {
			continue
		}
		category := parts[0]
		priority := domain.TicketPriority(parts[1])
		if cfg.CategoryHours[category] == nil {
			cfg.CategoryHours[category] = map[domain.TicketPriority]int{}
		}
		cfg.CategoryHours[category][priority] = hours
	}
	return cfg
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
