package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Admission AdmissionConfig
	Queue     QueueConfig
	Notify    NotifyConfig
	Auth      AuthConfig
	Scan      ScanConfig
	Rules     RulesConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds the shared store configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AdmissionConfig holds rate ceilings and mode thresholds
type AdmissionConfig struct {
	OwnerPerMinute  int
	OwnerPerHour    int
	SourcePerMinute int
	ImmediateMax    int
	QueuedMax       int
}

// QueueConfig holds worker pool and job lifetime settings
type QueueConfig struct {
	Workers    int
	PerJobTime time.Duration
	ResultTTL  time.Duration
	JobMaxAge  time.Duration
}

// NotifyConfig holds SMTP relay settings
type NotifyConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddr     string
	AdminEmail   string
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// ScanConfig holds scan orchestrator defaults
type ScanConfig struct {
	DefaultLimit int
	SinceHours   int
}

// RulesConfig points at the optional rule table override file
type RulesConfig struct {
	TablePath string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// Load parses flags and environment variables to build configuration.
// Environment variables win over flags so container deployments can
// override without changing the command line.
func Load() *Config {
	httpAddr := flag.String("http", ":8080", "HTTP server address")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "gatekeeper", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	rulesPath := flag.String("rules", "", "Path to a rule table JSON file (empty uses built-in rules)")

	flag.Parse()

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		*httpAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*logLevel = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		*dbHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*dbPort = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		*dbUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		*dbPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		*dbName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		*dbSSLMode = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*redisAddr = v
	}
	if v := os.Getenv("RULES_PATH"); v != "" {
		*rulesPath = v
	}

	return &Config{
		Server: ServerConfig{
			HTTPAddr: *httpAddr,
		},
		Database: DatabaseConfig{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Password: *dbPassword,
			Database: *dbName,
			SSLMode:  *dbSSLMode,
		},
		Redis: RedisConfig{
			Addr:     *redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Admission: loadAdmissionConfig(),
		Queue:     loadQueueConfig(),
		Notify:    loadNotifyConfig(),
		Auth:      loadAuthConfig(),
		Scan: ScanConfig{
			DefaultLimit: envInt("SCAN_DEFAULT_LIMIT", 500),
			SinceHours:   envInt("SCAN_SINCE_HOURS", 24),
		},
		Rules: RulesConfig{
			TablePath: *rulesPath,
		},
		Logging: LoggingConfig{
			Level: *logLevel,
		},
	}
}

func loadAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		OwnerPerMinute:  envInt("ADMISSION_OWNER_PER_MINUTE", 10),
		OwnerPerHour:    envInt("ADMISSION_OWNER_PER_HOUR", 100),
		SourcePerMinute: envInt("ADMISSION_SOURCE_PER_MINUTE", 60),
		ImmediateMax:    envInt("ADMISSION_IMMEDIATE_MAX", 100),
		QueuedMax:       envInt("ADMISSION_QUEUED_MAX", 1000),
	}
}

func loadQueueConfig() QueueConfig {
	return QueueConfig{
		Workers:    envInt("QUEUE_WORKERS", 4),
		PerJobTime: envDuration("QUEUE_PER_JOB_TIME", 500*time.Millisecond),
		ResultTTL:  envDuration("QUEUE_RESULT_TTL", time.Hour),
		JobMaxAge:  envDuration("QUEUE_JOB_MAX_AGE", 30*time.Minute),
	}
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		FromAddr:     getEnvOrDefault("NOTIFY_FROM", "moderation@localhost"),
		AdminEmail:   os.Getenv("NOTIFY_ADMIN_EMAIL"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:   os.Getenv("AUTH_JWT_SECRET"),
		JWTIssuer:   getEnvOrDefault("AUTH_JWT_ISSUER", "gatekeeper"),
		JWTAudience: getEnvOrDefault("AUTH_JWT_AUDIENCE", "gatekeeper-admins"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
