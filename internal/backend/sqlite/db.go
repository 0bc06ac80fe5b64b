// Package sqlite is the reference backend.Adapter, backed by database/sql.
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo,
// the default) and "sqlite" (modernc.org/sqlite, pure Go). Statements come
// from the sqlgen package and are always parameterized.
//
// The adapter also implements backend.Repairer: a missing table is created
// from the schema and missing nullable columns are added, after which the
// query layer retries the failed call once.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/sqlgen"
)

const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the database file; ":memory:" opens a private in-memory db.
	Path string

	// Driver is DriverCGO or DriverPure. Empty means DriverCGO.
	Driver string

	// BusyTimeout is how long a locked database is retried. Zero means 5s.
	BusyTimeout time.Duration

	// MaxOpenConns defaults to 1; SQLite allows a single writer.
	MaxOpenConns int

	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool

	Logger *slog.Logger
}

// DB is a SQLite-backed adapter.
type DB struct {
	db       *sql.DB
	driver   string
	compiler *sqlgen.Compiler
	logger   *slog.Logger
}

var (
	_ backend.Adapter    = (*DB)(nil)
	_ backend.Repairer   = (*DB)(nil)
	_ backend.RawQuerier = (*DB)(nil)
)

// Open creates or opens the database described by cfg and applies pragmas.
func Open(cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPure {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "backend.sqlite")

	db, err := sql.Open(driver, dsn(driver, cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	if err := applyPragmas(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	logger.Debug("database opened", "path", cfg.Path, "driver", driver)
	return &DB{
		db:       db,
		driver:   driver,
		compiler: sqlgen.New(),
		logger:   logger,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// SQL returns the underlying handle.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Driver returns the database/sql driver name in use.
func (d *DB) Driver() string {
	return d.driver
}

// dsn makes the pure-Go driver write times in SQLite's own format, which
// strftime understands. The cgo driver does so by default.
func dsn(driver, path string) string {
	if driver != DriverPure {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_time_format=sqlite"
}

func applyPragmas(db *sql.DB, cfg Config) error {
	timeout := cfg.BusyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
	}
	if cfg.Path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	if cfg.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
