// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite: no C compiler is
// needed and the binary cross-compiles anywhere Go does.
//
// TIMESTAMPS:
// Times are stored as TEXT in a fixed-width UTC layout (see timeLayout).
// Fixed width means lexicographic order equals chronological order, so
// queries such as `scheduled_for <= ?` compare correctly as plain strings.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 with a fixed nine-digit fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a sql.DB connection pool and implements every repository
// interface in package repository.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/voicepost.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	// Pin the pool to one connection so all queries see the same data.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while the publisher or ingester writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// categorized_posts → post_metrics relies on this.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := wrap(conn)

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// wrap builds a DB around an existing pool without running migrations.
// Tests use it with go-sqlmock.
func wrap(conn *sql.DB) *DB {
	return &DB{conn: conn, now: time.Now}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates all tables. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// One token per (user, platform): the conflict target of UpsertToken.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS social_tokens (
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			platform      TEXT NOT NULL,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			token_type    TEXT NOT NULL DEFAULT '',
			expires_at    TEXT NOT NULL DEFAULT '',
			updated_at    TEXT NOT NULL,
			PRIMARY KEY (user_id, platform)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating social_tokens table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_posts (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content          TEXT NOT NULL,
			platform         TEXT NOT NULL,
			scheduled_for    TEXT NOT NULL,
			posted           INTEGER NOT NULL DEFAULT 0,
			platform_post_id TEXT NOT NULL DEFAULT '',
			last_error       TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scheduled_posts_due ON scheduled_posts(posted, scheduled_for);
		CREATE INDEX IF NOT EXISTS idx_scheduled_posts_user ON scheduled_posts(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating scheduled_posts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_posts (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content     TEXT NOT NULL,
			personality TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_saved_posts_user ON saved_posts(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating saved_posts table: %w", err)
	}

	// A metric row is keyed by the owner plus the platform's own post id, so
	// two users connected to the same remote account each keep their own row.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS post_metrics (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			platform         TEXT NOT NULL,
			platform_post_id TEXT NOT NULL,
			post_content     TEXT NOT NULL,
			impressions      INTEGER NOT NULL DEFAULT 0,
			likes            INTEGER NOT NULL DEFAULT 0,
			comments         INTEGER NOT NULL DEFAULT 0,
			reshares         INTEGER NOT NULL DEFAULT 0,
			updated_at       TEXT NOT NULL,
			UNIQUE (user_id, platform, platform_post_id)
		);
		CREATE INDEX IF NOT EXISTS idx_post_metrics_user ON post_metrics(user_id);

		CREATE TABLE IF NOT EXISTS categorized_posts (
			id              TEXT PRIMARY KEY,
			post_metrics_id TEXT NOT NULL UNIQUE REFERENCES post_metrics(id) ON DELETE CASCADE,
			category        TEXT NOT NULL CHECK (category IN ('business', 'culture', 'politics'))
		);
	`)
	if err != nil {
		return fmt.Errorf("creating metrics tables: %w", err)
	}

	return nil
}

// formatTime renders t in the storage layout. The zero time becomes "".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestamp adapts a *time.Time to sql.Scanner for TEXT columns written by formatTime.
type timestamp struct {
	t *time.Time
}

func (ts timestamp) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case nil:
		*ts.t = time.Time{}
		return nil
	case time.Time:
		*ts.t = v
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("sqlite: cannot scan %T into time", value)
	}
	if s == "" {
		*ts.t = time.Time{}
		return nil
	}
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		return fmt.Errorf("sqlite: parsing time %q: %w", s, err)
	}
	*ts.t = parsed
	return nil
}
