package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Team is the integer team code stored in gym.team_id.
type Team int

const (
	TeamWhite Team = 0
	TeamBlue  Team = 1
	TeamRed   Team = 2
)

// FallbackTeamLabel covers every code without a label of its own, NULL included.
const FallbackTeamLabel = "Yellow"

var teamLabels = []struct {
	team  Team
	label string
}{
	{TeamWhite, "WHITE"},
	{TeamBlue, "Blue"},
	{TeamRed, "Red"},
}

// Label returns the display label for t.
func (t Team) Label() string {
	for _, tl := range teamLabels {
		if tl.team == t {
			return tl.label
		}
	}
	return FallbackTeamLabel
}

// TeamLabel maps a nullable team code to its label.
func TeamLabel(teamID *int) string {
	if teamID == nil {
		return FallbackTeamLabel
	}
	return Team(*teamID).Label()
}

// teamLabelSQL renders the same mapping as Team.Label as a CASE expression.
func teamLabelSQL(column string) string {
	var sb strings.Builder
	sb.WriteString("CASE")
	for _, tl := range teamLabels {
		sb.WriteString(" WHEN " + column + " = " + strconv.Itoa(int(tl.team)) + " THEN '" + tl.label + "'")
	}
	sb.WriteString(" ELSE '" + FallbackTeamLabel + "' END")
	return sb.String()
}

var teamCountQuery = query{
	selectFrom: func(Dialect) string {
		return "SELECT " + teamLabelSQL("team_id") + " AS team, COUNT(*) FROM gym"
	},
	suffix: "GROUP BY 1",
}

// GymCountByTeam counts gyms per team label. Labels without gyms are absent,
// and the counts always add up to the number of gyms.
func GymCountByTeam(ctx context.Context, q Querier) (map[string]int64, error) {
	sql, args := teamCountQuery.build(q.Dialect())

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count gyms by team: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			label string
			n     int64
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
