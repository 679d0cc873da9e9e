package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string

	HTTPAddr string

	DatabaseURL        string
	UserDirDatabaseURL string
	AutoMigrate        bool

	JWTSecret string
	JWTIssuer string

	// Redis. An empty address disables the cache and keeps change
	// notifications in process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEventTTL time.Duration

	RabbitURL        string
	RabbitExchange   string
	IdentityExchange string
	OutboxEnabled    bool
	ConsumerEnabled  bool

	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	LogLevel  string
	LogFormat string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.HTTPAddr = ":" + strings.TrimPrefix(getEnv("PORT", "8084"), ":")

	cfg.DatabaseURL = getEnv("DATABASE_URL", postgresURLFromParts())
	cfg.UserDirDatabaseURL = getEnv("USERDIR_DATABASE_URL", cfg.DatabaseURL)
	cfg.AutoMigrate = getBool("DB_AUTO_MIGRATE", true)

	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.JWTIssuer = getEnv("JWT_ISSUER", "")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)
	cfg.CacheEventTTL = getDuration("CACHE_EVENT_TTL", 5*time.Minute)

	cfg.RabbitURL = getEnv("RABBITMQ_URL", "")
	cfg.RabbitExchange = getEnv("RABBITMQ_EXCHANGE", "excursion.events")
	cfg.IdentityExchange = getEnv("IDENTITY_EXCHANGE", "identity.events")
	cfg.OutboxEnabled = getBool("OUTBOX_ENABLED", cfg.RabbitURL != "")
	cfg.ConsumerEnabled = getBool("CONSUMER_ENABLED", cfg.RabbitURL != "")

	cfg.RLEnabled = getBool("RL_ENABLED", true)
	cfg.RLLimit = getInt("RL_REQUESTS_LIMIT", 100)
	cfg.RLWindow = time.Duration(getInt("RL_WINDOW_SECONDS", 60)) * time.Second

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	cfg.HTTPReadTimeout = getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	cfg.HTTPWriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 0)
	cfg.HTTPIdleTimeout = getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing JWT_SECRET")
	}
	if (cfg.OutboxEnabled || cfg.ConsumerEnabled) && cfg.RabbitURL == "" {
		return nil, fmt.Errorf("missing RABBITMQ_URL (required when OUTBOX_ENABLED or CONSUMER_ENABLED)")
	}
	if cfg.AppEnv != "dev" && cfg.RabbitURL == "" {
		return nil, fmt.Errorf("missing RABBITMQ_URL (required when APP_ENV != dev)")
	}
	if cfg.RLLimit <= 0 {
		return nil, fmt.Errorf("RL_REQUESTS_LIMIT must be > 0")
	}

	return cfg, nil
}

// postgresURLFromParts builds a DSN from POSTGRES_* when DATABASE_URL is unset.
func postgresURLFromParts() string {
	host := getEnv("POSTGRES_HOST", "")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "postgres"), getEnv("POSTGRES_PASSWORD", "")),
		Host:     host + ":" + getEnv("POSTGRES_PORT", "5432"),
		Path:     "/" + getEnv("POSTGRES_DB", "excursions"),
		RawQuery: "sslmode=" + getEnv("POSTGRES_SSLMODE", "disable"),
	}
	return u.String()
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
