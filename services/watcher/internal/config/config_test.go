package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/gymfence/services/api/geofence"
)

func setEnv(t *testing.T, env map[string]string) {
	for _, key := range []string{
		"DATABASE_URL", "DATABASE_DRIVER", "WATCHER_NE", "WATCHER_SW", "WATCHER_PREV_NE",
		"WATCHER_PREV_SW", "WATCHER_INTERVAL", "WATCHER_QUERY_TIMEOUT", "DRY_RUN",
	} {
		t.Setenv(key, env[key])
	}
}

func TestLoad(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL":     "gyms.db",
		"DATABASE_DRIVER":  "SQLite",
		"WATCHER_NE":       "52.6,13.5",
		"WATCHER_SW":       "52.4, 13.3",
		"WATCHER_PREV_NE":  "52.7,13.6",
		"WATCHER_PREV_SW":  "52.5,13.4",
		"WATCHER_INTERVAL": "30s",
		"DRY_RUN":          "true",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, geofence.Location{Lat: 52.6, Lng: 13.5}, cfg.Region.NE)
	assert.Equal(t, geofence.Location{Lat: 52.4, Lng: 13.3}, cfg.Region.SW)
	require.NotNil(t, cfg.PreviousRegion)
	assert.Equal(t, geofence.Location{Lat: 52.5, Lng: 13.4}, cfg.PreviousRegion.SW)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, defaultQueryTimeout, cfg.QueryTimeout)
	assert.True(t, cfg.DryRun)
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/mad",
		"WATCHER_NE":   "1,1",
		"WATCHER_SW":   "0,0",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Nil(t, cfg.PreviousRegion)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.False(t, cfg.DryRun)
}

func TestLoadErrors(t *testing.T) {
	base := map[string]string{
		"DATABASE_URL": "postgres://localhost/mad",
		"WATCHER_NE":   "1,1",
		"WATCHER_SW":   "0,0",
	}
	cases := map[string]struct {
		key, value, want string
	}{
		"no database":   {"DATABASE_URL", "", "DATABASE_URL is required"},
		"no region":     {"WATCHER_NE", "", "must be set together"},
		"bad corner":    {"WATCHER_SW", "zero", "invalid WATCHER_SW"},
		"swapped":       {"WATCHER_NE", "-1,-1", "must be north-east"},
		"bad interval":  {"WATCHER_INTERVAL", "often", "invalid WATCHER_INTERVAL"},
		"zero interval": {"WATCHER_INTERVAL", "0s", "must be positive"},
		"bad timeout":   {"WATCHER_QUERY_TIMEOUT", "soon", "invalid WATCHER_QUERY_TIMEOUT"},
		"zero timeout":  {"WATCHER_QUERY_TIMEOUT", "0s", "invalid WATCHER_QUERY_TIMEOUT: 0s must be positive"},
		"neg timeout":   {"WATCHER_QUERY_TIMEOUT", "-5s", "must be positive"},
		"prev half set": {"WATCHER_PREV_NE", "1,1", "must be set together"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range base {
				env[k] = v
			}
			env[tc.key] = tc.value
			setEnv(t, env)

			_, err := Load()
			assert.ErrorContains(t, err, tc.want)
		})
	}

	setEnv(t, map[string]string{"DATABASE_URL": "x"})
	_, err := Load()
	assert.EqualError(t, err, "WATCHER_NE and WATCHER_SW are required")
}
