// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite?
// It's a pure Go translation of SQLite — no CGo, no C compiler, trivial
// cross-compilation. The database lives in a single file next to the binary
// (or in memory for tests), which is plenty for a single-server testimonial
// board with one writer per request and no multi-document transactions.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
//
// There is exactly one DB per process: main creates it, the server owns it
// and closes it on shutdown, and every request shares the underlying pool.
// sql.DB is safe for concurrent use, so no extra locking is needed here.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/testimonials.db" → file-based database (persistent)
//   - ":memory:"             → in-memory database (tests)
//
// sql.Open only creates the pool manager; Ping forces an immediate
// connection so a bad path or permissions problem fails at startup instead
// of on the first request.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress — important
	// because the public feed is read far more often than it is written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. We need them ON for the
	// testimonials.user_id → users.id reference.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always deferred by the owner (the server).
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates or updates the schema. Every step is idempotent
// (CREATE ... IF NOT EXISTS, guarded ALTERs, no-op backfill), so running it
// on every startup is safe.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			origin        TEXT NOT NULL DEFAULT 'credentials',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Testimonials carry a typed user_id foreign key from the start. The
	// legacy_user_ref column only exists on databases migrated from the old
	// schema where the user reference was a bare string field.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS testimonials (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			course     TEXT NOT NULL,
			type       TEXT NOT NULL,
			content    TEXT NOT NULL,
			message    TEXT NOT NULL DEFAULT '',
			date       DATETIME NOT NULL,
			user_id    TEXT NOT NULL REFERENCES users(id),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_testimonials_created_at
			ON testimonials(created_at);
		CREATE INDEX IF NOT EXISTS idx_testimonials_user_id
			ON testimonials(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating testimonials table: %w", err)
	}

	if err := db.backfillLegacyUserRefs(); err != nil {
		return fmt.Errorf("backfilling legacy user refs: %w", err)
	}

	return nil
}

// backfillLegacyUserRefs copies string-typed user references from the legacy
// legacy_user_ref column into the typed user_id column.
//
// Earlier versions of the schema stored the owning user as a loose string
// field. This pass resolves those rows to the typed foreign key exactly once:
// it only touches rows where user_id is still empty and legacy_user_ref is
// populated, so a second run finds nothing to do. Databases created on the
// current schema don't have the column at all and skip the pass entirely.
func (db *DB) backfillLegacyUserRefs() error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('testimonials') WHERE name = 'legacy_user_ref'`,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking for legacy_user_ref column: %w", err)
	}
	if count == 0 {
		return nil // fresh schema, nothing to backfill
	}

	_, err = db.conn.Exec(`
		UPDATE testimonials
		SET user_id = legacy_user_ref
		WHERE (user_id IS NULL OR user_id = '')
		  AND legacy_user_ref IS NOT NULL
		  AND legacy_user_ref != ''
	`)
	if err != nil {
		return fmt.Errorf("copying legacy refs: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already
// exist, making ALTER TABLE migrations idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
