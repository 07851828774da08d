package db

import (
	"strconv"
	"strings"
	"time"
)

// Dialect selects placeholder and identifier quoting rules.
type Dialect int

const (
	Postgres Dialect = iota
	MySQL
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// Placeholder returns the bind marker for the n-th argument (1-based).
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Quote quotes an identifier. raid.end needs it everywhere.
func (d Dialect) Quote(ident string) string {
	if d == MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// predicate is one WHERE condition. arg binds a value and returns its marker.
type predicate interface {
	render(d Dialect, arg func(any) string) string
}

// inRectangle matches rows whose position lies inside r, edges included.
type inRectangle struct {
	table string
	rect  Rectangle
}

func (p inRectangle) render(_ Dialect, arg func(any) string) string {
	lat := qualify(p.table, "latitude")
	lng := qualify(p.table, "longitude")
	return "(" + lat + " >= " + arg(p.rect.SW.Lat) +
		" AND " + lng + " >= " + arg(p.rect.SW.Lng) +
		" AND " + lat + " <= " + arg(p.rect.NE.Lat) +
		" AND " + lng + " <= " + arg(p.rect.NE.Lng) + ")"
}

// scannedSince matches rows scanned at or after since.
type scannedSince struct {
	table string
	since time.Time
}

func (p scannedSince) render(_ Dialect, arg func(any) string) string {
	// last_scanned is stored as UTC without a zone
	return qualify(p.table, "last_scanned") + " >= " + arg(p.since.UTC())
}

type gymIDEquals struct {
	table string
	id    string
}

func (p gymIDEquals) render(_ Dialect, arg func(any) string) string {
	return qualify(p.table, "gym_id") + " = " + arg(p.id)
}

// query is a SELECT with composable predicates joined by AND. The selection
// is a function because quoting differs per dialect.
type query struct {
	selectFrom func(d Dialect) string
	where      []predicate
	suffix     string
}

func (q query) and(p predicate) query {
	q.where = append(q.where[:len(q.where):len(q.where)], p)
	return q
}

// build renders the statement and its arguments for d.
func (q query) build(d Dialect) (string, []any) {
	args := make([]any, 0, 4*len(q.where))
	arg := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	var sb strings.Builder
	sb.WriteString(q.selectFrom(d))
	if len(q.where) > 0 {
		conditions := make([]string, len(q.where))
		for i, p := range q.where {
			conditions[i] = p.render(d, arg)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	if q.suffix != "" {
		sb.WriteString(" ")
		sb.WriteString(q.suffix)
	}
	return sb.String(), args
}

func qualify(table, column string) string {
	if table == "" {
		return column
	}
	return table + "." + column
}

func columns(table string, names ...string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = qualify(table, n)
	}
	return strings.Join(out, ", ")
}
