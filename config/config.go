package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Port          string
	LogLevel      string
	DBUrl         string
	StorageDriver string
	AutoMigrate   bool
	// Set when the database sits behind a transaction-mode pooler
	DBSimpleProtocol bool
	// HS256 secret used to verify caller identity tokens
	AuthJWTSecret string
	// Optional JWKS endpoint; when set, RS256 tokens are accepted too
	AuthJWKSURL string
	// HTTP adapter
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	// Redis configuration (caller-side classification code cache)
	RedisURL      string
	RedisPassword string
	CodeCacheTTL  time.Duration
	// Storage retry configuration
	StorageRetryAttempts       int
	StorageRetryInitialBackoff time.Duration
	StorageRetryMaxBackoff     time.Duration
	// Lifecycle configuration; zero means rejected profiles may always be reopened
	ResubmissionWindow time.Duration
	// Search pagination
	SearchDefaultLimit int
	SearchMaxLimit     int
	// Tracing; an empty endpoint disables export
	Environment  string
	OTelEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file (local only; ignored in production when the file is absent)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DBUrl:            getEnv("DATABASE_URL", ""),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		AutoMigrate:      getEnvBool("AUTO_MIGRATE", true),
		DBSimpleProtocol: getEnvBool("DB_SIMPLE_PROTOCOL", false),
		AuthJWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
		AuthJWKSURL:      getEnv("AUTH_JWKS_URL", ""),
		// HTTP
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CodeCacheTTL:  getEnvDuration("CODE_CACHE_TTL", 10*time.Minute),
		// Storage retry (only transient storage failures are retried)
		StorageRetryAttempts:       getEnvInt("STORAGE_RETRY_ATTEMPTS", 3),
		StorageRetryInitialBackoff: getEnvDuration("STORAGE_RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		StorageRetryMaxBackoff:     getEnvDuration("STORAGE_RETRY_MAX_BACKOFF", 2*time.Second),
		// Lifecycle
		ResubmissionWindow: getEnvDuration("RESUBMISSION_WINDOW", 30*24*time.Hour),
		// Search
		SearchDefaultLimit: getEnvInt("SEARCH_DEFAULT_LIMIT", 20),
		SearchMaxLimit:     getEnvInt("SEARCH_MAX_LIMIT", 100),
		// Tracing
		Environment:  getEnv("APP_ENV", "development"),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.StorageDriver != StorageDriverPostgres && cfg.StorageDriver != StorageDriverMemory {
		log.Printf("WARNING: unknown STORAGE_DRIVER %q, falling back to %s", cfg.StorageDriver, StorageDriverPostgres)
		cfg.StorageDriver = StorageDriverPostgres
	}

	if cfg.StorageDriver == StorageDriverPostgres && cfg.DBUrl == "" {
		log.Println("WARNING: DATABASE_URL is missing. Application may fail to connect.")
	}

	if cfg.AuthJWTSecret == "" && cfg.AuthJWKSURL == "" {
		log.Println("WARNING: neither AUTH_JWT_SECRET nor AUTH_JWKS_URL configured. Authenticated routes will reject every request.")
	}

	if cfg.RedisURL == "" {
		log.Println("WARNING: REDIS_URL not configured. Classification codes will be served uncached.")
	}

	if cfg.SearchMaxLimit < 1 {
		cfg.SearchMaxLimit = 100
	}
	if cfg.SearchDefaultLimit < 1 || cfg.SearchDefaultLimit > cfg.SearchMaxLimit {
		cfg.SearchDefaultLimit = min(20, cfg.SearchMaxLimit)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool returns a boolean environment variable or fallback if not set/invalid
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvDuration parses Go duration strings ("90s", "720h")
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}
