// Package config provides runtime configuration values for the server.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change_me_pos_ledger_secret"

// Config holds every knob the server reads at startup.
type Config struct {
	HTTPAddr          string
	BaseURL           string
	DBDriver          string // "mysql" or "sqlite"
	DBDSN             string
	DBLogLevel        string
	JWTSecret         string
	TokenTTL          time.Duration
	AllowRegistration bool
	CORSOrigins       []string
	UploadDir         string
	Location          *time.Location
	GeminiAPIKey      string
	KafkaBroker       string
	KafkaTopic        string
	RedisAddr         string
	IdempotencyTTL    time.Duration
	OtelEndpoint      string
	OtelAuthHeader    string
	LogLevel          string
	ShutdownTimeout   time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func listenv(key string, def []string) []string {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Load reads .env (if present) and then the environment, applying defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		BaseURL:           getenv("BASE_URL", "http://localhost:8080"),
		DBDriver:          strings.ToLower(getenv("DB_DRIVER", "mysql")),
		DBDSN:             getenv("DB_DSN", ""),
		DBLogLevel:        getenv("DB_LOG_LEVEL", "warn"),
		JWTSecret:         getenv("JWT_SECRET", defaultJWTSecret),
		TokenTTL:          durenv("TOKEN_TTL", 24*time.Hour),
		AllowRegistration: boolenv("ALLOW_REGISTRATION", false),
		CORSOrigins:       listenv("CORS_ORIGINS", []string{"http://localhost:5173"}),
		UploadDir:         getenv("UPLOAD_DIR", "./uploads"),
		GeminiAPIKey:      getenv("GEMINI_API_KEY", ""),
		KafkaBroker:       getenv("KAFKA_BROKER", ""),
		KafkaTopic:        getenv("KAFKA_TOPIC", "pos.sales"),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		IdempotencyTTL:    durenv("IDEMPOTENCY_TTL", 24*time.Hour),
		OtelEndpoint:      getenv("OTEL_ENDPOINT", ""),
		OtelAuthHeader:    getenv("OTEL_AUTH_HEADER", ""),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		ShutdownTimeout:   durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	tz := getenv("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	if cfg.DBDriver == "sqlite" && cfg.DBDSN == "" {
		cfg.DBDSN = "pos.db"
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN not found. Please configure your database")
	}
	if c.DBDriver == "mysql" && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set when running against mysql")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}
