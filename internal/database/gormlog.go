package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// slowQueryThreshold is where a query stops being routine and is logged
	// as a warning instead of a debug line.
	slowQueryThreshold = time.Second

	// maxLoggedSQL bounds the statement text attached to a log record. GORM
	// interpolates every parameter into the string, so batch inserts can run
	// to hundreds of kilobytes.
	maxLoggedSQL = 200
)

// queryLogger adapts GORM's logger.Interface onto slog. Failures that look
// like SQLite lock contention additionally dump pool statistics, rate
// limited to once a minute.
type queryLogger struct {
	logger *slog.Logger
	level  logger.LogLevel

	pool *sql.DB

	mu        sync.Mutex
	lastStats time.Time
}

func newQueryLogger(level string, log *slog.Logger) *queryLogger {
	return &queryLogger{logger: log, level: parseLogLevel(level)}
}

// parseLogLevel maps the config string onto GORM's levels. Unknown values
// fall back to warn.
func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// AttachPool hands the logger the pool handle it reads statistics from.
func (l *queryLogger) AttachPool(pool *sql.DB) {
	l.pool = pool
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &queryLogger{logger: l.logger, level: level, pool: l.pool}
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)

	// fc runs GORM's ExplainSQL, which interpolates every parameter into
	// the statement text. Decide whether anything will be emitted before
	// paying for that.
	var emit bool
	switch {
	case err != nil:
		emit = l.level >= logger.Error
	case elapsed > slowQueryThreshold:
		emit = l.level >= logger.Warn && l.logger.Enabled(ctx, slog.LevelWarn)
	default:
		emit = l.level >= logger.Info && l.logger.Enabled(ctx, slog.LevelDebug)
	}
	if !emit {
		return
	}

	sqlText, rows := fc()

	switch {
	case err != nil:
		kind := classifyQueryError(err)
		if kind == errBusy {
			l.dumpPoolStats()
		}
		l.logger.ErrorContext(ctx, "query failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
			slog.String("sql", clipSQL(sqlText)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	case elapsed > slowQueryThreshold:
		l.logger.WarnContext(ctx, "slow query",
			slog.String("sql", clipSQL(sqlText)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	default:
		l.logger.DebugContext(ctx, "query",
			slog.String("sql", clipSQL(sqlText)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	}
}

// errKind buckets query failures so a log search can tell lock contention
// apart from cancelled requests.
type errKind string

const (
	errBusy     errKind = "sqlite_busy"
	errCanceled errKind = "canceled"
	errTimeout  errKind = "timeout"
	errNotFound errKind = "not_found"
	errOther    errKind = "other"
)

// classifyQueryError buckets a failure. Driver errors often arrive flattened
// into strings, so substring checks back up errors.Is.
func classifyQueryError(err error) errKind {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"):
		return errBusy
	case errors.Is(err, context.Canceled) || strings.Contains(msg, "context canceled"):
		return errCanceled
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "deadline exceeded"):
		return errTimeout
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errNotFound
	default:
		return errOther
	}
}

// dumpPoolStats logs pool counters when lock contention shows up. WaitCount
// climbing alongside busy errors means the pool is undersized or a worker is
// holding a transaction open.
func (l *queryLogger) dumpPoolStats() {
	if l.pool == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastStats) < time.Minute {
		return
	}
	l.lastStats = time.Now()

	s := l.pool.Stats()
	l.logger.Warn("connection pool under contention",
		slog.Int("max_open", s.MaxOpenConnections),
		slog.Int("open", s.OpenConnections),
		slog.Int("in_use", s.InUse),
		slog.Int("idle", s.Idle),
		slog.Int64("wait_count", s.WaitCount),
		slog.Duration("wait_duration", s.WaitDuration),
	)
}

// clipSQL bounds statement text for logging.
func clipSQL(s string) string {
	if len(s) <= maxLoggedSQL {
		return s
	}
	return s[:maxLoggedSQL] + "..."
}
