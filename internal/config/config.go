package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port                       string
	AuthToken                  string
	DBURL                      string
	RatingsFeedURL             string
	RatingsFeedAPIKey          string
	RatingsFeedTimeoutSecs     int
	RatingsFeedMaxRetries      int
	RatingsFeedBreakerFailures int
	ReadTimeoutSecs            int
	WriteTimeoutSecs           int
	IdleTimeoutSecs            int
	DBMaxConns                 int
	DBMinConns                 int
	DBMaxIdleSecs              int
	DBMaxLifeSecs              int
	DBConnTimeoutSecs          int
	DBStatementCache           int
	RescoreWorkers             int
}

// FeedEnabled reports whether a ratings feed is configured.
func (c Config) FeedEnabled() bool {
	return c.RatingsFeedURL != ""
}

// Load reads the configuration the HTTP server needs, applying defaults and validation.
func Load() (Config, error) {
	cfg, err := read()
	if err != nil {
		return Config{}, err
	}
	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("AUTH_TOKEN is required")
	}
	if err := cfg.validateDB(); err != nil {
		return Config{}, err
	}
	if cfg.RatingsFeedTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("RATINGSFEED_TIMEOUT_SECS must be positive")
	}
	if cfg.RatingsFeedMaxRetries < 0 {
		return Config{}, fmt.Errorf("RATINGSFEED_MAX_RETRIES must be non-negative")
	}
	if cfg.RatingsFeedBreakerFailures <= 0 {
		return Config{}, fmt.Errorf("RATINGSFEED_BREAKER_FAILURES must be positive")
	}
	if cfg.RescoreWorkers <= 0 {
		return Config{}, fmt.Errorf("RESCORE_WORKERS must be positive")
	}
	return cfg, nil
}

// LoadDB reads configuration and validates only the database settings. Used by
// tools that talk to the store without serving HTTP.
func LoadDB() (Config, error) {
	cfg, err := read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validateDB(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func read() (Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}
	return Config{
		Port:                       getEnv("PORT", "8080"),
		AuthToken:                  os.Getenv("AUTH_TOKEN"),
		DBURL:                      os.Getenv("DB_URL"),
		RatingsFeedURL:             os.Getenv("RATINGSFEED_URL"),
		RatingsFeedAPIKey:          os.Getenv("RATINGSFEED_API_KEY"),
		RatingsFeedTimeoutSecs:     getEnvInt("RATINGSFEED_TIMEOUT_SECS", 5),
		RatingsFeedMaxRetries:      getEnvInt("RATINGSFEED_MAX_RETRIES", 2),
		RatingsFeedBreakerFailures: getEnvInt("RATINGSFEED_BREAKER_FAILURES", 5),
		ReadTimeoutSecs:            getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:           getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:            getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBMaxConns:                 getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:                 getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:              getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:              getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:          getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:           getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
		RescoreWorkers:             getEnvInt("RESCORE_WORKERS", 4),
	}, nil
}

func (c Config) validateDB() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if c.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	return nil
}

// loadDotEnv fills unset variables from path. A missing file is not an error;
// variables already present in the environment win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
