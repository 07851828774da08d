// Package dbtest provides a throwaway SQLite gym database for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/stretchr/testify/require"
)

var schema = []string{
	`CREATE TABLE gym (
		gym_id TEXT PRIMARY KEY,
		team_id INTEGER,
		guard_pokemon_id INTEGER,
		slots_available INTEGER,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		latitude DOUBLE NOT NULL,
		longitude DOUBLE NOT NULL,
		total_cp INTEGER,
		is_in_battle BOOLEAN NOT NULL DEFAULT 0,
		weather_boosted_condition INTEGER,
		last_modified DATETIME NOT NULL,
		last_scanned DATETIME NOT NULL,
		is_ex_raid_eligible BOOLEAN NOT NULL DEFAULT 0,
		is_ar_scan_eligible BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX gym_last_scanned ON gym (last_scanned)`,
	`CREATE INDEX gym_lat_lng ON gym (latitude, longitude)`,
	`CREATE TABLE gymdetails (
		gym_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		url TEXT,
		last_scanned DATETIME NOT NULL
	)`,
	`CREATE TABLE raid (
		gym_id TEXT PRIMARY KEY,
		level INTEGER NOT NULL,
		spawn DATETIME NOT NULL,
		start DATETIME NOT NULL,
		"end" DATETIME NOT NULL,
		pokemon_id INTEGER,
		cp INTEGER,
		move_1 INTEGER,
		move_2 INTEGER,
		last_scanned DATETIME NOT NULL,
		form INTEGER,
		is_exclusive BOOLEAN,
		gender INTEGER,
		costume INTEGER,
		evolution INTEGER
	)`,
}

// Open creates an empty gym database in a temporary directory. It is closed
// when the test ends.
func Open(t testing.TB) *db.Store {
	t.Helper()
	return OpenAt(t, filepath.Join(t.TempDir(), "gyms.db"))
}

// OpenAt is Open with an explicit database file.
func OpenAt(t testing.TB, path string) *db.Store {
	t.Helper()
	ctx := context.Background()

	store, err := db.Open(ctx, "sqlite", path)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	for _, stmt := range schema {
		require.NoError(t, store.Exec(ctx, stmt))
	}
	return store
}

// Team returns a pointer to a team code.
func Team(code int) *int {
	return &code
}

// Gym returns a gym at lat,lng scanned at the given time.
func Gym(id string, team *int, lat, lng float64, scanned time.Time) db.Gym {
	return db.Gym{
		GymID:        id,
		TeamID:       team,
		Enabled:      true,
		Latitude:     lat,
		Longitude:    lng,
		LastModified: scanned,
		LastScanned:  scanned,
	}
}

// AddGym inserts g.
func AddGym(t testing.TB, s *db.Store, g db.Gym) {
	t.Helper()
	err := s.Exec(context.Background(), `INSERT INTO gym (
		gym_id, team_id, guard_pokemon_id, slots_available, enabled, latitude, longitude,
		total_cp, is_in_battle, weather_boosted_condition, last_modified, last_scanned,
		is_ex_raid_eligible, is_ar_scan_eligible
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.GymID, g.TeamID, g.GuardPokemonID, g.SlotsAvailable, g.Enabled, g.Latitude, g.Longitude,
		g.TotalCP, g.IsInBattle, g.WeatherBoostedCondition, g.LastModified.UTC(), g.LastScanned.UTC(),
		g.IsExRaidEligible, g.IsArScanEligible,
	)
	require.NoError(t, err)
}

// AddDetail inserts a detail row named name for gymID.
func AddDetail(t testing.TB, s *db.Store, gymID, name string) {
	t.Helper()
	err := s.Exec(context.Background(),
		`INSERT INTO gymdetails (gym_id, name, description, url, last_scanned) VALUES (?, ?, NULL, ?, ?)`,
		gymID, name, "https://example.invalid/"+gymID+".png", time.Unix(0, 0).UTC(),
	)
	require.NoError(t, err)
}

// AddRaid inserts r.
func AddRaid(t testing.TB, s *db.Store, r db.Raid) {
	t.Helper()
	err := s.Exec(context.Background(), `INSERT INTO raid (
		gym_id, level, spawn, start, "end", pokemon_id, cp, move_1, move_2, last_scanned,
		form, is_exclusive, gender, costume, evolution
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.GymID, r.Level, r.Spawn.UTC(), r.Start.UTC(), r.End.UTC(), r.PokemonID, r.CP, r.Move1, r.Move2,
		r.LastScanned.UTC(), r.Form, r.IsExclusive, r.Gender, r.Costume, r.Evolution,
	)
	require.NoError(t, err)
}
