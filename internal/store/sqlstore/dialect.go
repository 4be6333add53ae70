package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour spoken to database/sql.
type Dialect int

const (
	Postgres Dialect = iota + 1
	SQLite
)

// String converts the Dialect enum to the database/sql driver name.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite3"
	}
	return "unknown"
}

// Rebind rewrites $N placeholders for the dialect. Postgres queries are
// returned unchanged, SQLite gets the numbered ?N form so that reused and
// out-of-order parameters bind to the right argument.
func (d Dialect) Rebind(query string) string {
	if d != SQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}
		n, _ := strconv.Atoi(query[i+1 : j])
		b.WriteByte('?')
		b.WriteString(strconv.Itoa(n))
		i = j - 1
	}
	return b.String()
}
