package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the few places where the supported SQL engines differ.
type dialect struct {
	name      string
	driver    string // database/sql driver name
	text      string // column type for layout documents
	timestamp string
	dollar    bool // $1 placeholders instead of ?
}

func dialectFor(name string) (dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3", "":
		return dialect{name: "sqlite", driver: "sqlite", text: "TEXT", timestamp: "DATETIME"}, nil
	case "postgres", "postgresql":
		return dialect{name: "postgres", driver: "postgres", text: "TEXT", timestamp: "TIMESTAMPTZ", dollar: true}, nil
	case "mysql", "mariadb":
		return dialect{name: "mysql", driver: "mysql", text: "LONGTEXT", timestamp: "DATETIME(6)"}, nil
	}
	return dialect{}, fmt.Errorf("unsupported sql driver %q", name)
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) createIndex(name, table, column string) string {
	if d.name == "mysql" {
		return fmt.Sprintf("CREATE INDEX %s ON %s(%s)", name, table, column)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", name, table, column)
}

func (d dialect) isDuplicateIndex(err error) bool {
	return d.name == "mysql" && strings.Contains(err.Error(), "Duplicate key name")
}

// upsert builds an insert that overwrites every non-key column when key
// already exists.
func (d dialect) upsert(table, key string, columns ...string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)

	var sets []string
	for _, c := range columns {
		if c == key {
			continue
		}
		if d.name == "mysql" {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	if d.name == "mysql" {
		return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return q + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET ", key) + strings.Join(sets, ", ")
}
