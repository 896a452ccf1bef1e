package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                string
	DatabaseURL         string
	JWTSecret           string
	JWTTTL              time.Duration
	DataEncryptionKey   string
	Environment         string
	LogLevel            string
	LogFormat           string
	PublicBaseURL       string
	RunMigrations       bool
	MigrationsDir       string
	RunSeed             bool
	SeedAdminEmail      string
	SeedAdminPassword   string
	MaxBodyBytes        int64
	RateLimitPerMinute  int
	DSARSLADays         int
	DSARSimulatedDelay  bool
	DSARExportTTL       time.Duration
	DSAROverdueInterval time.Duration
	JobWorkers          int
	JobQueueSize        int
	WebhookTimeout      time.Duration
	DefaultPhoneRegion  string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	DashboardCacheTTL   time.Duration
	NATSURL             string
	OTLPEndpoint        string
	ServiceName         string
	MetricsEnabled      bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                getEnv("APP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTTTL:              getEnvDuration("JWT_TTL", 8*time.Hour),
		DataEncryptionKey:   getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:         getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		RunMigrations:       getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", "migrations"),
		RunSeed:             getEnvBool("RUN_SEED", true),
		SeedAdminEmail:      getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:   getEnv("SEED_ADMIN_PASSWORD", ""),
		MaxBodyBytes:        int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		DSARSLADays:         getEnvInt("DSAR_SLA_DAYS", 30),
		DSARSimulatedDelay:  getEnvBool("DSAR_SIMULATED_DELAY", true),
		DSARExportTTL:       getEnvDuration("DSAR_EXPORT_TTL", 7*24*time.Hour),
		DSAROverdueInterval: getEnvDuration("DSAR_OVERDUE_INTERVAL", time.Hour),
		JobWorkers:          getEnvInt("JOB_WORKERS", 4),
		JobQueueSize:        getEnvInt("JOB_QUEUE_SIZE", 256),
		WebhookTimeout:      getEnvDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		DefaultPhoneRegion:  strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "US")),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		DashboardCacheTTL:   getEnvDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
		NATSURL:             getEnv("NATS_URL", ""),
		OTLPEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         getEnv("OTEL_SERVICE_NAME", "consenthub"),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return errors.New("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return errors.New("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return errors.New("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.DSARSLADays <= 0 {
		return errors.New("DSAR_SLA_DAYS must be positive")
	}
	if c.JobWorkers <= 0 {
		return errors.New("JOB_WORKERS must be positive")
	}
	if c.JobQueueSize <= 0 {
		return errors.New("JOB_QUEUE_SIZE must be positive")
	}
	if len(c.DefaultPhoneRegion) != 2 {
		return fmt.Errorf("DEFAULT_PHONE_REGION must be a two-letter region code, got %q", c.DefaultPhoneRegion)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}
