// Package database persists media records and the variant index in SQLite.
//
// The variant index enforces at most one entry per (media, preset, format,
// width) tuple via a UNIQUE constraint; SaveVariant upserts on that key.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-variants/internal/logging"
	"media-variants/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("database: not found")

// Database manages all persistence for media records and variant index entries.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (and if needed creates) the database at dbPath. The parent
// directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode and a busy timeout keep concurrent regeneration workers from
	// tripping over "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS media (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		ext TEXT NOT NULL,
		mime TEXT NOT NULL,
		hash TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		focal_x REAL,
		focal_y REAL,
		blur_hash TEXT,
		copyright TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_media_hash ON media(hash);
	CREATE INDEX IF NOT EXISTS idx_media_mime ON media(mime);

	CREATE TABLE IF NOT EXISTS media_variants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		media_id TEXT NOT NULL REFERENCES media(id) ON DELETE CASCADE,
		preset TEXT NOT NULL,
		format TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		path TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(media_id, preset, format, width)
	);

	CREATE INDEX IF NOT EXISTS idx_variants_media ON media_variants(media_id);
	CREATE INDEX IF NOT EXISTS idx_variants_media_preset ON media_variants(media_id, preset);
	CREATE INDEX IF NOT EXISTS idx_variants_path ON media_variants(path);
	`

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := d.db.ExecContext(initCtx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (d *Database) Close() error {
	return d.db.Close()
}

func record(operation string, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueriesTotal.WithLabelValues(operation, status).Inc()
}
