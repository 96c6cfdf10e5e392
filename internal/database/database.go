package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBFileName is the default session database file name.
const DBFileName = "sessions.db"

// ErrNotFound is returned when a session row does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// DB represents the database connection
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Session is one stored browser session. Credentials holds the sealed
// OAuth2 token and is opaque to the database. OAuthState is the nonce of a
// sign-in in progress.
type Session struct {
	ID          string
	Credentials []byte
	Email       string
	OAuthState  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// GetDBPath returns the default database path, next to the executable.
func GetDBPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return DBFileName
	}
	return filepath.Join(filepath.Dir(execPath), DBFileName)
}

// Open opens a connection to the SQLite database at path and creates the
// schema if needed.
func Open(path string) (*DB, error) {
	if path == "" {
		path = GetDBPath()
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to access database: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}
	if err := db.Initialize(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Initialize creates the database schema
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		credentials BLOB,
		email TEXT NOT NULL DEFAULT '',
		oauth_state TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return db.addColumn("sessions", "oauth_state", "TEXT NOT NULL DEFAULT ''")
}

// addColumn adds a column to tables created by older versions of the schema.
func (db *DB) addColumn(table, column, definition string) error {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	rows.Close()

	if _, err := db.conn.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

// SaveSession inserts or replaces a session row. CreatedAt is kept from the
// first insert.
func (db *DB) SaveSession(s *Session) error {
	now := db.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := `
	INSERT INTO sessions (id, credentials, email, oauth_state, created_at, updated_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		credentials=excluded.credentials,
		email=excluded.email,
		oauth_state=excluded.oauth_state,
		updated_at=excluded.updated_at,
		expires_at=excluded.expires_at`

	_, err := db.conn.Exec(query, s.ID, s.Credentials, s.Email, s.OAuthState,
		s.CreatedAt.Unix(), s.UpdatedAt.Unix(), s.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession returns an unexpired session by ID.
func (db *DB) GetSession(id string) (*Session, error) {
	query := `SELECT id, credentials, email, oauth_state, created_at, updated_at, expires_at
		FROM sessions WHERE id = ? AND expires_at > ?`

	var s Session
	var created, updated, expires int64
	err := db.conn.QueryRow(query, id, db.now().Unix()).
		Scan(&s.ID, &s.Credentials, &s.Email, &s.OAuthState, &created, &updated, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.CreatedAt = time.Unix(created, 0)
	s.UpdatedAt = time.Unix(updated, 0)
	s.ExpiresAt = time.Unix(expires, 0)
	return &s, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (db *DB) DeleteSession(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes every expired session and returns how many were removed.
func (db *DB) PurgeExpired() (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, db.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// CountSessions returns the number of stored sessions, expired or not.
func (db *DB) CountSessions() (int, error) {
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
