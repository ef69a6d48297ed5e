// Package observability builds the process wide slog logger. All audiarr
// logging is structured, and any value whose originating struct field is
// tagged `masq:"secret"` is redacted before it reaches the output, so API
// keys and webhook secrets never land in a log file.
package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/jmylchreest/audiarr/internal/config"
)

// NewLogger builds a logger from the logging config, writing to the
// configured output target.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, resolveWriter(cfg.Output))
}

// NewLoggerWithWriter builds a logger that writes to w. Tests use this to
// capture output.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	redact := masq.New(masq.WithTag("secret"))

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return redact(groups, a)
		},
	}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	// JSON is the default and the fallback for unknown formats.
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetDefault installs the logger process wide so package level slog calls
// share the same handler.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// WithComponent returns a child logger tagged with a subsystem name, so the
// queue, workers and HTTP server can be told apart in a merged stream.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// resolveWriter maps the output target to a writer. Anything other than
// stdout or stderr is treated as a file path, created on demand. A path that
// cannot be opened falls back to stdout so a bad log path never blocks
// startup.
func resolveWriter(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	}
}

// parseLevel maps the config string onto slog levels, defaulting to info.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
