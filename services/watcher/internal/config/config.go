package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/02loveslollipop/gymfence/services/api/geofence"
)

const (
	defaultDriver       = "postgres"
	defaultInterval     = time.Minute
	defaultQueryTimeout = 30 * time.Second
)

// Config holds runtime configuration for the watcher service.
type Config struct {
	DatabaseURL    string
	DatabaseDriver string
	Region         db.Rectangle
	PreviousRegion *db.Rectangle
	Interval       time.Duration
	QueryTimeout   time.Duration
	DryRun         bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(os.Getenv("DATABASE_DRIVER")))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = defaultDriver
	}

	region, err := rectangleEnv("WATCHER_NE", "WATCHER_SW")
	if err != nil {
		return cfg, err
	}
	if region == nil {
		return cfg, errors.New("WATCHER_NE and WATCHER_SW are required")
	}
	cfg.Region = *region

	cfg.PreviousRegion, err = rectangleEnv("WATCHER_PREV_NE", "WATCHER_PREV_SW")
	if err != nil {
		return cfg, err
	}

	cfg.Interval = defaultInterval
	if v := strings.TrimSpace(os.Getenv("WATCHER_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_INTERVAL: %w", err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("invalid WATCHER_INTERVAL: %s must be positive", v)
		}
		cfg.Interval = d
	}

	cfg.QueryTimeout = defaultQueryTimeout
	if v := strings.TrimSpace(os.Getenv("WATCHER_QUERY_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_QUERY_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("invalid WATCHER_QUERY_TIMEOUT: %s must be positive", v)
		}
		cfg.QueryTimeout = d
	}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	return cfg, nil
}

// rectangleEnv reads a rectangle from two "lat,lng" variables. It returns nil
// when both are unset.
func rectangleEnv(neKey, swKey string) (*db.Rectangle, error) {
	neStr := strings.TrimSpace(os.Getenv(neKey))
	swStr := strings.TrimSpace(os.Getenv(swKey))
	if neStr == "" && swStr == "" {
		return nil, nil
	}
	if neStr == "" || swStr == "" {
		return nil, fmt.Errorf("%s and %s must be set together", neKey, swKey)
	}

	ne, err := geofence.ParseLocation(neStr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", neKey, err)
	}
	sw, err := geofence.ParseLocation(swStr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", swKey, err)
	}
	if ne.Lat < sw.Lat || ne.Lng < sw.Lng {
		return nil, fmt.Errorf("%s must be north-east of %s", neKey, swKey)
	}
	return &db.Rectangle{NE: ne, SW: sw}, nil
}
