// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - Single-server deployments (which is most apps, honestly)
// - Development and testing (use ":memory:" for in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...)
	// knows how to talk to SQLite.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. The per-entity repositories returned
// by Drafts/Meals/Users share this pool; the server carries a single handle
// and closes it once on shutdown.
type DB struct {
	conn *sql.DB
}

// Drafts returns the draft repository backed by this database.
func (db *DB) Drafts() *DraftRepo { return &DraftRepo{conn: db.conn} }

// Meals returns the meal repository backed by this database.
func (db *DB) Meals() *MealRepo { return &MealRepo{conn: db.conn} }

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserRepo { return &UserRepo{conn: db.conn} }

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/nutrilog.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces a real connection now, so a bad path or permissions issue
	// surfaces here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is happening — needed
	// for a web server where poll reads race generation writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (backwards compatibility);
	// we rely on users → drafts/meals referential integrity.
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

// Close closes the database connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it safe to
// run on every start.
//
// Drafts keep created_at as unix seconds (it is the client-visible sort
// key); meals use DATETIME like the rest of the schema.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			email           TEXT NOT NULL UNIQUE,
			name            TEXT NOT NULL DEFAULT '',
			password_hash   TEXT NOT NULL DEFAULT '',
			google_id       TEXT NOT NULL DEFAULT '',
			target_calories REAL NOT NULL DEFAULT 0,
			target_protein  REAL NOT NULL DEFAULT 0,
			target_carbs    REAL NOT NULL DEFAULT 0,
			target_fat      REAL NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id
			ON users(google_id) WHERE google_id != '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			description   TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			result        TEXT,
			error_message TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_drafts_user_id ON drafts(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating drafts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS meals (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			components  TEXT NOT NULL DEFAULT '[]',
			calories    REAL NOT NULL DEFAULT 0,
			protein     REAL NOT NULL DEFAULT 0,
			carbs       REAL NOT NULL DEFAULT 0,
			fat         REAL NOT NULL DEFAULT 0,
			consumed_on TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_meals_user_id ON meals(user_id);
		CREATE INDEX IF NOT EXISTS idx_meals_consumed_on ON meals(user_id, consumed_on);
	`)
	if err != nil {
		return fmt.Errorf("creating meals table: %w", err)
	}

	return nil
}
