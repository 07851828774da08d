package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/02loveslollipop/gymfence/services/api/db/dbtest"
	"github.com/02loveslollipop/gymfence/services/api/geofence"
	"github.com/02loveslollipop/gymfence/services/watcher/internal/config"
	"github.com/02loveslollipop/gymfence/services/watcher/internal/diff"
)

func TestWatcherPoll(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	dbtest.AddGym(t, store, dbtest.Gym("a", dbtest.Team(1), 5, 5, old))
	dbtest.AddDetail(t, store, "a", "Alpha")
	dbtest.AddGym(t, store, dbtest.Gym("outside", dbtest.Team(1), 50, 50, old))
	dbtest.AddDetail(t, store, "outside", "Far")

	w := &watcher{
		cfg: config.Config{
			Region: db.Rectangle{
				NE: geofence.Location{Lat: 10, Lng: 10},
				SW: geofence.Location{Lat: 0, Lng: 0},
			},
			QueryTimeout: 5 * time.Second,
		},
		q: store,
	}

	changes, err := w.poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes, "baseline is silent")
	assert.Len(t, w.known, 1)
	require.NotNil(t, w.since)

	// nothing rescanned
	changes, err = w.poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)

	fresh := time.Now().UTC().Add(time.Minute).Truncate(time.Second)
	require.NoError(t, store.Exec(ctx, "UPDATE gym SET team_id = 2, last_scanned = ? WHERE gym_id = 'a'", fresh))
	dbtest.AddGym(t, store, dbtest.Gym("b", dbtest.Team(0), 1, 1, fresh))
	dbtest.AddDetail(t, store, "b", "Bravo")
	dbtest.AddRaid(t, store, db.Raid{GymID: "b", Level: 1, Spawn: fresh, Start: fresh, End: fresh.Add(time.Hour), LastScanned: fresh})
	require.NoError(t, store.Exec(ctx, "UPDATE gym SET team_id = 0, last_scanned = ? WHERE gym_id = 'outside'", fresh))

	changes, err = w.poll(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "a", changes[0].GymID)
	assert.Equal(t, diff.TeamChanged, changes[0].Kind)
	assert.Equal(t, "Red", changes[0].To)
	assert.Equal(t, "b", changes[1].GymID)
	assert.Equal(t, diff.Appeared, changes[1].Kind)
	require.NotNil(t, w.known["b"].Raid)
	assert.Equal(t, 3, w.polls)
}

func TestWatcherPollError(t *testing.T) {
	store := dbtest.Open(t)
	store.Close()

	w := &watcher{cfg: config.Config{QueryTimeout: time.Second}, q: store}
	_, err := w.poll(context.Background())
	assert.Error(t, err)
	assert.Nil(t, w.since)
	assert.Zero(t, w.polls)
}
