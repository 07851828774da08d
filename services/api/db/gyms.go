package db

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/02loveslollipop/gymfence/services/api/geofence"
)

// Gym represents a row of the gym table.
type Gym struct {
	GymID                   string    `json:"gym_id"`
	TeamID                  *int      `json:"team_id"`
	GuardPokemonID          *int      `json:"guard_pokemon_id,omitempty"`
	SlotsAvailable          *int      `json:"slots_available,omitempty"`
	Enabled                 bool      `json:"enabled"`
	Latitude                float64   `json:"latitude"`
	Longitude               float64   `json:"longitude"`
	TotalCP                 *int      `json:"total_cp,omitempty"`
	IsInBattle              bool      `json:"is_in_battle"`
	WeatherBoostedCondition *int      `json:"weather_boosted_condition,omitempty"`
	LastModified            time.Time `json:"last_modified"`
	LastScanned             time.Time `json:"last_scanned"`
	IsExRaidEligible        bool      `json:"is_ex_raid_eligible"`
	IsArScanEligible        bool      `json:"is_ar_scan_eligible"`
}

// Location returns the gym position.
func (g Gym) Location() geofence.Location {
	return geofence.Location{Lat: g.Latitude, Lng: g.Longitude}
}

// Team returns the gym's team label.
func (g Gym) Team() string {
	return TeamLabel(g.TeamID)
}

func (g *Gym) dest() []any {
	return []any{
		&g.GymID,
		&g.TeamID,
		&g.GuardPokemonID,
		&g.SlotsAvailable,
		&g.Enabled,
		&g.Latitude,
		&g.Longitude,
		&g.TotalCP,
		&g.IsInBattle,
		&g.WeatherBoostedCondition,
		&g.LastModified,
		&g.LastScanned,
		&g.IsExRaidEligible,
		&g.IsArScanEligible,
	}
}

var gymColumnNames = []string{
	"gym_id", "team_id", "guard_pokemon_id", "slots_available", "enabled",
	"latitude", "longitude", "total_cp", "is_in_battle", "weather_boosted_condition",
	"last_modified", "last_scanned", "is_ex_raid_eligible", "is_ar_scan_eligible",
}

// GymDetail holds the descriptive metadata of a gym.
type GymDetail struct {
	GymID       string    `json:"gym_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	URL         *string   `json:"url,omitempty"`
	LastScanned time.Time `json:"last_scanned"`
}

func (d *GymDetail) dest() []any {
	return []any{&d.GymID, &d.Name, &d.Description, &d.URL, &d.LastScanned}
}

var detailColumnNames = []string{"gym_id", "name", "description", "url", "last_scanned"}

// Raid is the active raid at a gym.
type Raid struct {
	GymID       string    `json:"gym_id"`
	Level       int       `json:"level"`
	Spawn       time.Time `json:"spawn"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	PokemonID   *int      `json:"pokemon_id,omitempty"`
	CP          *int      `json:"cp,omitempty"`
	Move1       *int      `json:"move_1,omitempty"`
	Move2       *int      `json:"move_2,omitempty"`
	LastScanned time.Time `json:"last_scanned"`
	Form        *int      `json:"form,omitempty"`
	IsExclusive *bool     `json:"is_exclusive,omitempty"`
	Gender      *int      `json:"gender,omitempty"`
	Costume     *int      `json:"costume,omitempty"`
	Evolution   *int      `json:"evolution,omitempty"`
}

// nullRaid receives the left-joined raid columns, which are all NULL when the
// gym has no raid.
type nullRaid struct {
	GymID       *string
	Level       *int
	Spawn       *time.Time
	Start       *time.Time
	End         *time.Time
	PokemonID   *int
	CP          *int
	Move1       *int
	Move2       *int
	LastScanned *time.Time
	Form        *int
	IsExclusive *bool
	Gender      *int
	Costume     *int
	Evolution   *int
}

func (n *nullRaid) dest() []any {
	return []any{
		&n.GymID, &n.Level, &n.Spawn, &n.Start, &n.End,
		&n.PokemonID, &n.CP, &n.Move1, &n.Move2, &n.LastScanned,
		&n.Form, &n.IsExclusive, &n.Gender, &n.Costume, &n.Evolution,
	}
}

func (n *nullRaid) raid() *Raid {
	if n.GymID == nil {
		return nil
	}
	r := &Raid{
		GymID:       *n.GymID,
		PokemonID:   n.PokemonID,
		CP:          n.CP,
		Move1:       n.Move1,
		Move2:       n.Move2,
		Form:        n.Form,
		IsExclusive: n.IsExclusive,
		Gender:      n.Gender,
		Costume:     n.Costume,
		Evolution:   n.Evolution,
	}
	if n.Level != nil {
		r.Level = *n.Level
	}
	if n.Spawn != nil {
		r.Spawn = *n.Spawn
	}
	if n.Start != nil {
		r.Start = *n.Start
	}
	if n.End != nil {
		r.End = *n.End
	}
	if n.LastScanned != nil {
		r.LastScanned = *n.LastScanned
	}
	return r
}

func raidColumns(d Dialect) string {
	return columns("raid", "gym_id", "level", "spawn", "start") +
		", raid." + d.Quote("end") + ", " +
		columns("raid", "pokemon_id", "cp", "move_1", "move_2", "last_scanned",
			"form", "is_exclusive", "gender", "costume", "evolution")
}

// GymWithDetail is a gym joined with its detail and, if any, its raid.
type GymWithDetail struct {
	Gym    Gym       `json:"gym"`
	Detail GymDetail `json:"detail"`
	Raid   *Raid     `json:"raid"`
}

// Rectangle is an axis-aligned lat/lng box given by its north-east and
// south-west corners. Every edge is inclusive.
type Rectangle struct {
	NE geofence.Location `json:"ne"`
	SW geofence.Location `json:"sw"`
}

// Contains reports whether loc lies inside r.
func (r Rectangle) Contains(loc geofence.Location) bool {
	return loc.Lat >= r.SW.Lat && loc.Lat <= r.NE.Lat &&
		loc.Lng >= r.SW.Lng && loc.Lng <= r.NE.Lng
}

// Geofence is the polygon capability LocationsInFence refines with.
type Geofence interface {
	BoundingBox() (minLat, minLng, maxLat, maxLng float64)
	FilterToPolygon(points []geofence.Location) []geofence.Location
}

var locationsQuery = query{
	selectFrom: func(Dialect) string { return "SELECT latitude, longitude FROM gym" },
}

// LocationsInFence returns the positions of the gyms inside fence. Storage is
// queried with the fence's bounding box and the candidates are then filtered
// by exact containment. A fence with an empty or inverted bounding box yields
// no locations.
func LocationsInFence(ctx context.Context, q Querier, fence Geofence) ([]geofence.Location, error) {
	minLat, minLng, maxLat, maxLng := fence.BoundingBox()
	if degenerate(minLat, maxLat) || degenerate(minLng, maxLng) {
		return []geofence.Location{}, nil
	}

	bbox := Rectangle{
		NE: geofence.Location{Lat: maxLat, Lng: maxLng},
		SW: geofence.Location{Lat: minLat, Lng: minLng},
	}
	sql, args := locationsQuery.and(inRectangle{rect: bbox}).build(q.Dialect())

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gym locations: %w", err)
	}
	defer rows.Close()

	candidates := make([]geofence.Location, 0)
	for rows.Next() {
		var loc geofence.Location
		if err := rows.Scan(&loc.Lat, &loc.Lng); err != nil {
			return nil, err
		}
		candidates = append(candidates, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return fence.FilterToPolygon(candidates), nil
}

func degenerate(lo, hi float64) bool {
	return math.IsNaN(lo) || math.IsNaN(hi) || lo > hi
}

// RectangleFilter selects gyms for GymsInRectangle. Every non-nil field adds
// one predicate and the predicates are ANDed.
type RectangleFilter struct {
	Current  *Rectangle
	Previous *Rectangle
	Since    *time.Time
}

var gymJoinQuery = query{
	selectFrom: func(d Dialect) string {
		return "SELECT " + columns("gym", gymColumnNames...) + ", " +
			columns("gymdetails", detailColumnNames...) + ", " +
			raidColumns(d) +
			" FROM gym" +
			" INNER JOIN gymdetails ON gym.gym_id = gymdetails.gym_id" +
			" LEFT JOIN raid ON raid.gym_id = gym.gym_id"
	},
}

func (f RectangleFilter) query() query {
	q := gymJoinQuery
	if f.Current != nil {
		q = q.and(inRectangle{table: "gym", rect: *f.Current})
	}
	if f.Previous != nil {
		q = q.and(inRectangle{table: "gym", rect: *f.Previous})
	}
	if f.Since != nil {
		q = q.and(scannedSince{table: "gym", since: *f.Since})
	}
	return q
}

// GymsInRectangle returns the gyms matching f keyed by gym id, each with its
// detail and its raid. Gyms without a detail row are skipped; gyms without a
// raid have a nil Raid. An empty filter returns every gym that has a detail.
func GymsInRectangle(ctx context.Context, q Querier, f RectangleFilter) (map[string]GymWithDetail, error) {
	sql, args := f.query().build(q.Dialect())

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gyms in rectangle: %w", err)
	}
	defer rows.Close()

	out := make(map[string]GymWithDetail)
	for rows.Next() {
		var (
			rec  GymWithDetail
			raid nullRaid
		)
		dest := append(rec.Gym.dest(), rec.Detail.dest()...)
		dest = append(dest, raid.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec.Raid = raid.raid()
		out[rec.Gym.GymID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var gymQuery = query{
	selectFrom: func(Dialect) string {
		return "SELECT " + strings.Join(gymColumnNames, ", ") + " FROM gym"
	},
}

// GetGym returns the gym with the given id, or nil when there is none.
func GetGym(ctx context.Context, q Querier, gymID string) (*Gym, error) {
	sql, args := gymQuery.and(gymIDEquals{id: gymID}).build(q.Dialect())

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gym %s: %w", gymID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var g Gym
	if err := rows.Scan(g.dest()...); err != nil {
		return nil, err
	}
	return &g, rows.Err()
}
