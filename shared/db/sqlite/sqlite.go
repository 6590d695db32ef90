package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/dfryer1193/ciel/shared/db"
)

const (
	defaultPath        = "./ciel.db"
	defaultBusyTimeout = 5 * time.Second
)

// SQLiteConfig locates the index file. A zero BusyTimeout uses the default.
type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// NewSQLiteConfig returns the settings for the index at path, or ./ciel.db
// when path is empty.
func NewSQLiteConfig(path string) *SQLiteConfig {
	if path == "" {
		path = defaultPath
	}

	return &SQLiteConfig{
		Path:        path,
		BusyTimeout: defaultBusyTimeout,
	}
}

// SQLiteDB holds the single connection to the tag index.
type SQLiteDB struct {
	dbPath      string
	busyTimeout time.Duration
	db          *sql.DB
}

func NewSQLiteDB(cfg *SQLiteConfig) *SQLiteDB {
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	return &SQLiteDB{
		dbPath:      cfg.Path,
		busyTimeout: busyTimeout,
	}
}

var _ db.Database = (*SQLiteDB)(nil)

// Connect opens the database, applies pragmas and runs pending migrations.
func (s *SQLiteDB) Connect() error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}

	conn, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas are per connection. Holding exactly one keeps foreign_keys in
	// force and serialises access to the index.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.busyTimeout.Milliseconds()),
		"PRAGMA cache_size=-16000",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = conn
	return nil
}

// Close folds the write-ahead log back into the index file and releases the
// connection. Closing twice is a no-op.
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Warn().Err(err).Str("path", s.dbPath).Msg("Failed to checkpoint index before close")
	}

	conn := s.db
	s.db = nil
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close database %s: %w", s.dbPath, err)
	}
	return nil
}

func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}
