// Package database opens and manages the audiarr job store. SQLite is the
// default backend and runs in WAL mode on a small connection pool; Postgres
// and MySQL are available for installs that already operate one.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jmylchreest/audiarr/internal/config"
	"github.com/jmylchreest/audiarr/internal/models"
)

// DB wraps the GORM handle together with the configuration it was opened with.
type DB struct {
	*gorm.DB
	cfg    config.DatabaseConfig
	logger *slog.Logger
}

// Options tweaks connection behaviour. Nil means defaults.
type Options struct {
	// PrepareStmt caches prepared statements per connection. On by default;
	// tests that mix raw transactions with an in-memory database turn it off.
	PrepareStmt bool
}

// New opens a connection for the configured driver and sizes the pool.
func New(cfg config.DatabaseConfig, log *slog.Logger, opts *Options) (*DB, error) {
	if opts == nil {
		opts = &Options{PrepareStmt: true}
	}
	if log == nil {
		log = slog.Default()
	}

	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	qlog := newQueryLogger(cfg.LogLevel, log)
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 qlog,
		SkipDefaultTransaction: true,
		PrepareStmt:            opts.PrepareStmt,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pool, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	qlog.AttachPool(pool)

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if cfg.Driver == "sqlite" {
		// WAL allows concurrent readers but a single writer, so a handful of
		// connections covers the workers plus API reads; more only stacks up
		// lock contention. An in-memory database exists per connection and
		// must never be handed a second one.
		maxOpen, maxIdle = 6, 3
		if strings.Contains(cfg.DSN, ":memory:") {
			maxOpen, maxIdle = 1, 1
		}
	}
	pool.SetMaxOpenConns(maxOpen)
	pool.SetMaxIdleConns(maxIdle)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := &DB{DB: gdb, cfg: cfg, logger: log}
	db.logOpen(maxOpen, maxIdle)
	return db, nil
}

// Migrate creates or updates the schema for every persisted model. Run on
// each startup; AutoMigrate only adds missing tables, columns and indexes.
func (db *DB) Migrate() error {
	if err := db.DB.AutoMigrate(
		&models.Job{},
		&models.JobEvent{},
		&models.CacheEntry{},
	); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	pool, err := db.DB.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	pool, err := db.DB.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// Driver reports the configured driver name.
func (db *DB) Driver() string { return db.cfg.Driver }

// sqlitePragmas are applied through DSN parameters so that every pooled
// connection picks them up, not just the first.
var sqlitePragmas = []string{
	"busy_timeout(30000)", // wait up to 30s on a locked database
	"journal_mode(WAL)",   // readers do not block the writer
	"synchronous(NORMAL)", // safe under WAL, much faster than FULL
	"foreign_keys(ON)",
	"cache_size(-64000)",   // 64MB page cache
	"mmap_size(268435456)", // 256MB memory-mapped reads
	"temp_store(MEMORY)",
	"wal_autocheckpoint(1000)",
}

// openDialector picks the GORM dialector for the configured driver. SQLite
// goes through glebarez/sqlite, which wraps the pure Go modernc driver and
// keeps the binary CGO-free.
func openDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		for _, p := range sqlitePragmas {
			dsn += sep + "_pragma=" + p
			sep = "&"
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// logOpen reports the effective connection settings. For SQLite the PRAGMA
// values are read back so a mistyped DSN parameter shows up in the log
// instead of silently reverting to a driver default.
func (db *DB) logOpen(maxOpen, maxIdle int) {
	if db.cfg.Driver != "sqlite" {
		db.logger.Info("database opened",
			slog.String("driver", db.cfg.Driver),
			slog.Int("max_open_conns", maxOpen),
			slog.Int("max_idle_conns", maxIdle),
		)
		return
	}

	var journalMode, synchronous string
	var busyTimeout, cacheSize, mmapSize int64
	_ = db.DB.Raw("PRAGMA journal_mode").Scan(&journalMode)
	_ = db.DB.Raw("PRAGMA synchronous").Scan(&synchronous)
	_ = db.DB.Raw("PRAGMA busy_timeout").Scan(&busyTimeout)
	_ = db.DB.Raw("PRAGMA cache_size").Scan(&cacheSize)
	_ = db.DB.Raw("PRAGMA mmap_size").Scan(&mmapSize)

	db.logger.Info("database opened",
		slog.String("driver", "sqlite"),
		slog.Int("max_open_conns", maxOpen),
		slog.String("journal_mode", journalMode),
		slog.String("synchronous", synchronous),
		slog.Int64("busy_timeout_ms", busyTimeout),
		slog.Int64("cache_size", cacheSize),
		slog.Int64("mmap_size", mmapSize),
	)
}
