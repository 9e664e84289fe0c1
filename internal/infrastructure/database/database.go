package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

// InMemory opens a private database that lives as long as the handle.
const InMemory = ":memory:"

const (
	pingTimeout   = 5 * time.Second
	connLifetime  = time.Hour
	connIdleLimit = 30 * time.Minute
)

// ErrNoPath is returned by Open when Config.Path is empty.
var ErrNoPath = errors.New("database: path is required")

// Config is the database section of the config file.
type Config struct {
	Path        string // file path or InMemory; parent dirs are created
	WALMode     bool
	BusyTimeout int // seconds to wait on a locked database
}

// DB is the devicehub SQLite handle. Repositories take the embedded
// *sql.DB; DB adds migrations and a health check.
type DB struct {
	*sql.DB
	path string
}

// dsn renders cfg as a go-sqlite3 connection string. Foreign keys are
// always on since device topics and telemetry cascade from devices.
func dsn(cfg Config) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*1000))
	if cfg.WALMode && cfg.Path != InMemory {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Open connects to the database described by cfg and pings it within ctx.
// On-disk files are created with mode 0600 in a 0750 directory.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	onDisk := cfg.Path != InMemory

	if onDisk {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("database: creating directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Path, err)
	}

	// One connection: SQLite serialises writers anyway, and :memory:
	// is per-connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if onDisk {
		sqlDB.SetConnMaxLifetime(connLifetime)
		sqlDB.SetConnMaxIdleTime(connIdleLimit)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("database: ping %s: %w", cfg.Path, err)
	}

	if onDisk {
		_ = os.Chmod(cfg.Path, 0o600) //nolint:errcheck // file appears on first write
	}
	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// Path is the path Open was given.
func (db *DB) Path() string { return db.path }

// Close is safe on a zero DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("database: close: %w", err)
	}
	return nil
}

// HealthCheck runs SELECT 1. It backs the "database" entry of /health.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database: health check: %w", err)
	}
	return nil
}
