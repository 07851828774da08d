package db_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/02loveslollipop/gymfence/services/api/db/dbtest"
	"github.com/02loveslollipop/gymfence/services/api/geofence"
)

var scanned = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// failingQuerier records calls and fails every query with err.
type failingQuerier struct {
	err   error
	calls int
}

func (f *failingQuerier) Query(context.Context, string, ...any) (db.Rows, error) {
	f.calls++
	return nil, f.err
}

func (f *failingQuerier) Dialect() db.Dialect { return db.Postgres }

func rect(swLat, swLng, neLat, neLng float64) *db.Rectangle {
	return &db.Rectangle{
		NE: geofence.Location{Lat: neLat, Lng: neLng},
		SW: geofence.Location{Lat: swLat, Lng: swLng},
	}
}

func TestLocationsInFence(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	// triangle with vertices (0,0), (0,10), (10,0) in lat,lng
	fence := geofence.NewFence("tri", []orb.Polygon{{orb.Ring{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}}, nil)

	dbtest.AddGym(t, store, dbtest.Gym("inside", nil, 2, 2, scanned))
	dbtest.AddGym(t, store, dbtest.Gym("vertex", nil, 0, 10, scanned))
	dbtest.AddGym(t, store, dbtest.Gym("bbox-only", nil, 9, 9, scanned))
	dbtest.AddGym(t, store, dbtest.Gym("outside", nil, 20, 20, scanned))

	got, err := db.LocationsInFence(ctx, store, fence)
	require.NoError(t, err)
	assert.ElementsMatch(t, []geofence.Location{{Lat: 2, Lng: 2}, {Lat: 0, Lng: 10}}, got)
}

func TestLocationsInFenceStaysInsidePolygon(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	poly := orb.Polygon{orb.Ring{{10, 50}, {12, 51}, {11, 53}, {9, 52}, {10, 50}}}
	fence := geofence.NewFence("quad", []orb.Polygon{poly}, nil)
	minLat, minLng, maxLat, maxLng := fence.BoundingBox()

	r := rand.New(rand.NewSource(1))
	inserted := make(map[geofence.Location]bool)
	for i := 0; i < 100; i++ {
		loc := geofence.Location{Lat: 49 + r.Float64()*5, Lng: 8 + r.Float64()*5}
		inserted[loc] = true
		dbtest.AddGym(t, store, dbtest.Gym(loc.String(), nil, loc.Lat, loc.Lng, scanned))
	}

	got, err := db.LocationsInFence(ctx, store, fence)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Less(t, len(got), len(inserted))
	for _, loc := range got {
		assert.True(t, inserted[loc], "unknown location %v", loc)
		assert.True(t, fence.Contains(loc), "outside polygon %v", loc)
		assert.True(t, loc.Lat >= minLat && loc.Lat <= maxLat && loc.Lng >= minLng && loc.Lng <= maxLng)
	}
}

func TestLocationsInFenceDegenerate(t *testing.T) {
	q := &failingQuerier{err: errors.New("must not be called")}

	got, err := db.LocationsInFence(context.Background(), q, geofence.NewFence("empty", nil, nil))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, q.calls)
}

func TestStorageErrorsPropagate(t *testing.T) {
	boom := errors.New("connection refused")
	q := &failingQuerier{err: boom}
	ctx := context.Background()
	fence := geofence.NewFence("sq", []orb.Polygon{{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}}, nil)

	locs, err := db.LocationsInFence(ctx, q, fence)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, locs)

	gyms, err := db.GymsInRectangle(ctx, q, db.RectangleFilter{})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, gyms)

	counts, err := db.GymCountByTeam(ctx, q)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, counts)

	gym, err := db.GetGym(ctx, q, "a")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, gym)
}

func TestGymsInRectangleScenario(t *testing.T) {
	store := dbtest.Open(t)

	dbtest.AddGym(t, store, dbtest.Gym("near", dbtest.Team(1), 5, 5, scanned))
	dbtest.AddDetail(t, store, "near", "Fountain")
	dbtest.AddGym(t, store, dbtest.Gym("far", dbtest.Team(2), 20, 20, scanned))
	dbtest.AddDetail(t, store, "far", "Statue")

	got, err := db.GymsInRectangle(context.Background(), store, db.RectangleFilter{Current: rect(0, 0, 10, 10)})
	require.NoError(t, err)
	require.Len(t, got, 1)

	rec, ok := got["near"]
	require.True(t, ok)
	assert.Nil(t, rec.Raid)
	assert.Equal(t, "near", rec.Gym.GymID)
	assert.Equal(t, "Fountain", rec.Detail.Name)
	assert.Nil(t, rec.Detail.Description)
	assert.Equal(t, "Blue", rec.Gym.Team())
	assert.True(t, rec.Gym.Enabled)
	assert.True(t, rec.Gym.LastScanned.Equal(scanned))
}

func TestRectangleEdgesAreInclusive(t *testing.T) {
	store := dbtest.Open(t)

	edges := map[string][2]float64{
		"sw":    {0, 0},
		"ne":    {10, 10},
		"north": {10, 5},
		"west":  {5, 0},
		"nw":    {10, 0},
	}
	for id, p := range edges {
		dbtest.AddGym(t, store, dbtest.Gym(id, nil, p[0], p[1], scanned))
		dbtest.AddDetail(t, store, id, id)
	}
	dbtest.AddGym(t, store, dbtest.Gym("just-out", nil, 10.0001, 5, scanned))
	dbtest.AddDetail(t, store, "just-out", "just-out")

	got, err := db.GymsInRectangle(context.Background(), store, db.RectangleFilter{Current: rect(0, 0, 10, 10)})
	require.NoError(t, err)
	assert.Len(t, got, len(edges))
	for id := range edges {
		assert.Contains(t, got, id)
	}
	assert.NotContains(t, got, "just-out")
}

func TestGymsInRectangleMatchesContains(t *testing.T) {
	store := dbtest.Open(t)
	area := rect(4, 6, 12, 15)

	want := make(map[string]bool)
	add := func(loc geofence.Location) {
		id := loc.String()
		if _, ok := want[id]; ok {
			return
		}
		dbtest.AddGym(t, store, dbtest.Gym(id, nil, loc.Lat, loc.Lng, scanned))
		dbtest.AddDetail(t, store, id, id)
		want[id] = area.Contains(loc)
	}
	add(area.SW)
	add(area.NE)
	add(geofence.Location{Lat: 12, Lng: 6})

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 150; i++ {
		// half-degree grid so many points land on the edges
		add(geofence.Location{Lat: float64(r.Intn(41)) * 0.5, Lng: float64(r.Intn(41)) * 0.5})
	}

	got, err := db.GymsInRectangle(context.Background(), store, db.RectangleFilter{Current: area})
	require.NoError(t, err)
	for id, inside := range want {
		_, ok := got[id]
		assert.Equal(t, inside, ok, id)
	}
	for _, g := range got {
		assert.True(t, area.Contains(g.Gym.Location()))
	}
}

func TestRectangleContains(t *testing.T) {
	area := rect(0, 0, 10, 10)
	assert.True(t, area.Contains(geofence.Location{Lat: 0, Lng: 0}))
	assert.True(t, area.Contains(geofence.Location{Lat: 10, Lng: 10}))
	assert.True(t, area.Contains(geofence.Location{Lat: 5, Lng: 10}))
	assert.False(t, area.Contains(geofence.Location{Lat: 10.0001, Lng: 5}))
	assert.False(t, area.Contains(geofence.Location{Lat: 5, Lng: -0.1}))
}

func TestGymsInRectangleJoins(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	dbtest.AddGym(t, store, dbtest.Gym("plain", nil, 1, 1, scanned))
	dbtest.AddDetail(t, store, "plain", "Plain")

	dbtest.AddGym(t, store, dbtest.Gym("raided", dbtest.Team(0), 2, 2, scanned))
	dbtest.AddDetail(t, store, "raided", "Raided")
	pokemon, exclusive := 150, true
	dbtest.AddRaid(t, store, db.Raid{
		GymID:       "raided",
		Level:       5,
		Spawn:       scanned.Add(-time.Hour),
		Start:       scanned,
		End:         scanned.Add(45 * time.Minute),
		PokemonID:   &pokemon,
		LastScanned: scanned,
		IsExclusive: &exclusive,
	})

	// no detail, so unknown to joined queries
	dbtest.AddGym(t, store, dbtest.Gym("undetailed", nil, 3, 3, scanned))

	got, err := db.GymsInRectangle(ctx, store, db.RectangleFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NotContains(t, got, "undetailed")
	for id, rec := range got {
		assert.Equal(t, id, rec.Gym.GymID)
		assert.Equal(t, id, rec.Detail.GymID)
	}

	assert.Nil(t, got["plain"].Raid)
	raid := got["raided"].Raid
	require.NotNil(t, raid)
	assert.Equal(t, "raided", raid.GymID)
	assert.Equal(t, 5, raid.Level)
	assert.True(t, raid.End.Equal(scanned.Add(45*time.Minute)))
	require.NotNil(t, raid.PokemonID)
	assert.Equal(t, 150, *raid.PokemonID)
	assert.Nil(t, raid.CP)
	require.NotNil(t, raid.IsExclusive)
	assert.True(t, *raid.IsExclusive)
}

func TestGymsInRectangleSince(t *testing.T) {
	store := dbtest.Open(t)

	dbtest.AddGym(t, store, dbtest.Gym("stale", nil, 1, 1, scanned.Add(-time.Minute)))
	dbtest.AddDetail(t, store, "stale", "Stale")
	dbtest.AddGym(t, store, dbtest.Gym("exact", nil, 1, 1, scanned))
	dbtest.AddDetail(t, store, "exact", "Exact")
	dbtest.AddGym(t, store, dbtest.Gym("fresh", nil, 1, 1, scanned.Add(time.Hour)))
	dbtest.AddDetail(t, store, "fresh", "Fresh")

	// the threshold's zone must not matter
	since := scanned.In(time.FixedZone("UTC-5", -5*60*60))
	got, err := db.GymsInRectangle(context.Background(), store, db.RectangleFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "exact")
	assert.Contains(t, got, "fresh")
}

func TestGymsInRectanglePredicatesAreANDed(t *testing.T) {
	store := dbtest.Open(t)

	dbtest.AddGym(t, store, dbtest.Gym("current-only", nil, 5, 5, scanned))
	dbtest.AddDetail(t, store, "current-only", "a")
	dbtest.AddGym(t, store, dbtest.Gym("both", nil, 9, 9, scanned))
	dbtest.AddDetail(t, store, "both", "b")
	dbtest.AddGym(t, store, dbtest.Gym("previous-only", nil, 12, 12, scanned))
	dbtest.AddDetail(t, store, "previous-only", "c")

	got, err := db.GymsInRectangle(context.Background(), store, db.RectangleFilter{
		Current:  rect(0, 0, 10, 10),
		Previous: rect(8, 8, 15, 15),
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "both")
}

func TestGetGym(t *testing.T) {
	store := dbtest.Open(t)
	ctx := context.Background()

	dbtest.AddGym(t, store, dbtest.Gym("g1", dbtest.Team(2), 52.5, 13.4, scanned))

	g, err := db.GetGym(ctx, store, "g1")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "g1", g.GymID)
	assert.Equal(t, geofence.Location{Lat: 52.5, Lng: 13.4}, g.Location())
	assert.Equal(t, "Red", g.Team())

	missing, err := db.GetGym(ctx, store, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
