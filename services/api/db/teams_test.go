package db_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/02loveslollipop/gymfence/services/api/db/dbtest"
)

func TestTeamLabel(t *testing.T) {
	assert.Equal(t, "WHITE", db.TeamLabel(dbtest.Team(0)))
	assert.Equal(t, "Blue", db.TeamLabel(dbtest.Team(1)))
	assert.Equal(t, "Red", db.TeamLabel(dbtest.Team(2)))
	assert.Equal(t, "Yellow", db.TeamLabel(dbtest.Team(3)))
	assert.Equal(t, "Yellow", db.TeamLabel(dbtest.Team(-1)))
	assert.Equal(t, "Yellow", db.TeamLabel(nil))
}

func TestGymCountByTeamScenario(t *testing.T) {
	store := dbtest.Open(t)

	dbtest.AddGym(t, store, dbtest.Gym("A", dbtest.Team(0), 1, 1, scanned))
	dbtest.AddGym(t, store, dbtest.Gym("B", dbtest.Team(1), 1, 1, scanned))
	dbtest.AddGym(t, store, dbtest.Gym("C", dbtest.Team(2), 1, 1, scanned))
	dbtest.AddGym(t, store, dbtest.Gym("D", dbtest.Team(5), 1, 1, scanned))

	counts, err := db.GymCountByTeam(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"WHITE": 1, "Blue": 1, "Red": 1, "Yellow": 1}, counts)
}

func TestGymCountByTeamMatchesLabels(t *testing.T) {
	store := dbtest.Open(t)

	codes := []*int{
		dbtest.Team(0), dbtest.Team(0), dbtest.Team(2), dbtest.Team(3),
		dbtest.Team(4), dbtest.Team(-7), nil, nil,
	}
	want := make(map[string]int64)
	for i, code := range codes {
		dbtest.AddGym(t, store, dbtest.Gym("g"+strconv.Itoa(i), code, 1, 1, scanned))
		want[db.TeamLabel(code)]++
	}

	counts, err := db.GymCountByTeam(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, want, counts)
	assert.NotContains(t, counts, "Blue")

	var total int64
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, int64(len(codes)), total)
}

func TestGymCountByTeamEmpty(t *testing.T) {
	store := dbtest.Open(t)

	counts, err := db.GymCountByTeam(context.Background(), store)
	require.NoError(t, err)
	assert.NotNil(t, counts)
	assert.Empty(t, counts)
}
