package store

import (
	"strconv"
	"strings"
)

type dialect struct {
	name         string
	driverName   string
	singleWriter bool
	positional   bool
	schema       []string
}

// Timestamps are stored as unix microseconds so both dialects compare and
// scan them the same way.
var dialects = map[string]dialect{
	"postgres": {
		name:       "postgres",
		driverName: "pgx",
		positional: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id               TEXT PRIMARY KEY,
				email            TEXT NOT NULL UNIQUE,
				name             TEXT NOT NULL DEFAULT '',
				image            TEXT NOT NULL DEFAULT '',
				checks_performed BIGINT NOT NULL DEFAULT 0,
				created_at       BIGINT NOT NULL,
				last_login       BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS history (
				id             TEXT PRIMARY KEY,
				user_id        TEXT NOT NULL,
				original_text  TEXT NOT NULL,
				corrected_text TEXT NOT NULL,
				suggestions    TEXT NOT NULL,
				created_at     BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS history_user_created ON history (user_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS history_created ON history (created_at)`,
		},
	},
	"sqlite": {
		name:         "sqlite",
		driverName:   "sqlite",
		singleWriter: true,
		schema: []string{
			`PRAGMA busy_timeout = 5000`,
			`CREATE TABLE IF NOT EXISTS users (
				id               TEXT PRIMARY KEY,
				email            TEXT NOT NULL UNIQUE,
				name             TEXT NOT NULL DEFAULT '',
				image            TEXT NOT NULL DEFAULT '',
				checks_performed INTEGER NOT NULL DEFAULT 0,
				created_at       INTEGER NOT NULL,
				last_login       INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS history (
				id             TEXT PRIMARY KEY,
				user_id        TEXT NOT NULL,
				original_text  TEXT NOT NULL,
				corrected_text TEXT NOT NULL,
				suggestions    TEXT NOT NULL,
				created_at     INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS history_user_created ON history (user_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS history_created ON history (created_at)`,
		},
	},
}

// rebind rewrites ? placeholders to $N for drivers that need positional
// parameters. Queries here never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.positional {
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
