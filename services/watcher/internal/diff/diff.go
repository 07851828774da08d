// Package diff compares successive gym snapshots of a watched region.
package diff

import (
	"fmt"
	"sort"
	"time"

	"github.com/02loveslollipop/gymfence/services/api/db"
)

// Kind classifies a change.
type Kind string

const (
	Appeared    Kind = "appeared"
	TeamChanged Kind = "team_changed"
	RaidStarted Kind = "raid_started"
	RaidHatched Kind = "raid_hatched"
	RaidEnded   Kind = "raid_ended"
)

// Change is one observed difference for a gym.
type Change struct {
	Kind   Kind
	GymID  string
	Name   string
	From   string
	To     string
	Raid   *db.Raid
	Latest db.GymWithDetail
}

func (c Change) String() string {
	switch c.Kind {
	case TeamChanged:
		return fmt.Sprintf("%s %q (%s): %s -> %s", c.Kind, c.Name, c.GymID, c.From, c.To)
	case RaidStarted, RaidHatched:
		pokemon := "egg"
		if c.Raid.PokemonID != nil {
			pokemon = fmt.Sprintf("pokemon %d", *c.Raid.PokemonID)
		}
		return fmt.Sprintf("%s %q (%s): level %d, %s, ends %s", c.Kind, c.Name, c.GymID, c.Raid.Level, pokemon, c.Raid.End.Format("15:04"))
	default:
		return fmt.Sprintf("%s %q (%s)", c.Kind, c.Name, c.GymID)
	}
}

// Changes lists what differs between the known gyms and the ones just
// fetched at now. Gyms missing from current are not reported because a poll
// only returns gyms scanned since the previous one, except that a known raid
// whose end is not after now is reported as ended. The result is ordered by
// gym id.
func Changes(known, current map[string]db.GymWithDetail, now time.Time) []Change {
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	for id, prev := range known {
		if _, ok := current[id]; !ok && prev.Raid != nil && !live(prev.Raid, now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]Change, 0)
	for _, id := range ids {
		prev, ok := known[id]
		cur, fetched := current[id]
		if !fetched {
			out = append(out, Change{Kind: RaidEnded, GymID: id, Name: prev.Detail.Name, Raid: prev.Raid, Latest: prev})
			continue
		}
		base := Change{GymID: id, Name: cur.Detail.Name, Latest: cur}

		if !ok {
			c := base
			c.Kind = Appeared
			c.To = cur.Gym.Team()
			out = append(out, c)
			continue
		}

		if from, to := prev.Gym.Team(), cur.Gym.Team(); from != to {
			c := base
			c.Kind = TeamChanged
			c.From, c.To = from, to
			out = append(out, c)
		}

		raid := cur.Raid
		if !live(raid, now) {
			raid = nil
		}
		switch {
		case prev.Raid != nil && raid == nil:
			c := base
			c.Kind = RaidEnded
			c.Raid = prev.Raid
			out = append(out, c)
		case raid != nil && (prev.Raid == nil || !prev.Raid.Spawn.Equal(raid.Spawn)):
			c := base
			c.Kind = RaidStarted
			c.Raid = raid
			out = append(out, c)
		case raid != nil && prev.Raid.PokemonID == nil && raid.PokemonID != nil:
			c := base
			c.Kind = RaidHatched
			c.Raid = raid
			out = append(out, c)
		}
	}
	return out
}

// Apply records current into known and returns known. Raids that are no
// longer live at now are dropped from every known gym.
func Apply(known, current map[string]db.GymWithDetail, now time.Time) map[string]db.GymWithDetail {
	if known == nil {
		known = make(map[string]db.GymWithDetail, len(current))
	}
	for id, rec := range current {
		known[id] = rec
	}
	for id, rec := range known {
		if rec.Raid != nil && !live(rec.Raid, now) {
			rec.Raid = nil
			known[id] = rec
		}
	}
	return known
}

func live(r *db.Raid, now time.Time) bool {
	return r != nil && r.End.After(now)
}
