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

// Config holds environment-driven settings for the REST API.
type Config struct {
	DatabaseURL    string
	DatabaseDriver string
	Port           int
	BearerToken    string
	JWTSecret      string
	QueryTimeout   time.Duration
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		DatabaseDriver: "postgres",
		Port:           8080,
		QueryTimeout:   15 * time.Second,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		driver = strings.ToLower(driver)
		switch driver {
		case "postgres", "mysql", "sqlite":
			cfg.DatabaseDriver = driver
		default:
			return cfg, fmt.Errorf("invalid DATABASE_DRIVER: %s", driver)
		}
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if timeoutStr := os.Getenv("API_QUERY_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout > 0 {
			cfg.QueryTimeout = timeout
		} else {
			return cfg, fmt.Errorf("invalid API_QUERY_TIMEOUT: %s", timeoutStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")
	cfg.JWTSecret = os.Getenv("API_JWT_SECRET")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
