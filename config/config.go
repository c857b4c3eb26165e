package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Build    BuildConfig
	Auth     AuthConfig
	App      AppConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

// DatabaseConfig selects the template store. Driver is one of
// "postgres" (lib/pq), "pgx" (pgx stdlib) or "memory".
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig is optional; an empty Addr disables status events and the
// redis build queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BuildConfig struct {
	Backend        string // "http", "redis" or "" (disabled)
	URL            string
	CallbackURL    string
	CallbackSecret string
	Queue          string
	DispatchRate   float64
	DispatchBurst  int
	Timeout        time.Duration
	ReconcileSpec  string
	ReconcileBatch int
}

type AuthConfig struct {
	KeyCacheTTL time.Duration
}

type AppConfig struct {
	Environment string
	LogLevel    string
	LogFormat   string
	Version     string
}

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverMemory   = "memory"

	BuildBackendHTTP  = "http"
	BuildBackendRedis = "redis"
)

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", DriverPostgres),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "templates"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Build: BuildConfig{
			Backend:        getEnv("BUILD_BACKEND", ""),
			URL:            getEnv("BUILD_BACKEND_URL", ""),
			CallbackURL:    getEnv("BUILD_CALLBACK_URL", ""),
			CallbackSecret: getEnv("BUILD_CALLBACK_SECRET", ""),
			Queue:          getEnv("BUILD_QUEUE", "tpl:builds:queue"),
			DispatchRate:   getEnvAsFloat("BUILD_DISPATCH_RATE", 10),
			DispatchBurst:  getEnvAsInt("BUILD_DISPATCH_BURST", 20),
			Timeout:        getEnvAsDuration("BUILD_TIMEOUT", 30*time.Minute),
			ReconcileSpec:  getEnv("BUILD_RECONCILE_SPEC", "0 */1 * * * *"),
			ReconcileBatch: getEnvAsInt("BUILD_RECONCILE_BATCH", 100),
		},
		Auth: AuthConfig{
			KeyCacheTTL: getEnvAsDuration("API_KEY_CACHE_TTL", time.Minute),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverPgx:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Build.Backend {
	case "":
	case BuildBackendHTTP:
		if c.Build.URL == "" {
			return fmt.Errorf("BUILD_BACKEND_URL is required for the http build backend")
		}
	case BuildBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis build backend")
		}
	default:
		return fmt.Errorf("unsupported BUILD_BACKEND %q", c.Build.Backend)
	}

	if c.Build.DispatchRate <= 0 {
		return fmt.Errorf("BUILD_DISPATCH_RATE must be positive")
	}
	if c.Build.Timeout <= 0 {
		return fmt.Errorf("BUILD_TIMEOUT must be positive")
	}
	if c.Build.ReconcileBatch < 1 {
		return fmt.Errorf("BUILD_RECONCILE_BATCH must be at least 1")
	}
	if c.App.Environment == "production" && c.Build.Backend != "" && c.Build.CallbackSecret == "" {
		return fmt.Errorf("BUILD_CALLBACK_SECRET is required in production when a build backend is configured")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
