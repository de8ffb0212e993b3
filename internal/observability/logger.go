// Package observability provides structured logging for hwcodec.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/jmylchreest/hwcodec/internal/config"
)

// LevelTrace is below debug and carries per-frame backend chatter.
const LevelTrace = slog.LevelDebug - 4

const redacted = "[REDACTED]"

// Secret marks a value that must never reach a log sink in clear text.
type Secret string

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// ProbeRunIDKey is the context key for the current probe run.
	ProbeRunIDKey contextKey = "probe_run_id"
	// SessionIDKey is the context key for a codec session.
	SessionIDKey contextKey = "session_id"

	loggerKey contextKey = "logger"
)

var sensitiveKeys = map[string]bool{
	"password":   true,
	"secret":     true,
	"token":      true,
	"apikey":     true,
	"api_key":    true,
	"credential": true,
}

var sensitiveParam = regexp.MustCompile(`(?i)([?&](?:password|secret|token|apikey|api_key|credential)=)[^&\s"]*`)

// NewLogger creates a new slog.Logger based on the provided configuration.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a new slog.Logger that writes to w.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	redact := masq.New(
		masq.WithType[Secret](),
		masq.WithFieldName("DSN"),
		masq.WithFieldName("Password"),
		masq.WithRedactMessage(redacted),
	)

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 {
				switch a.Key {
				case slog.LevelKey:
					if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
						return slog.String(slog.LevelKey, "TRACE")
					}
					return a
				case slog.TimeKey:
					if cfg.TimeFormat != "" {
						if t, ok := a.Value.Any().(time.Time); ok {
							return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
						}
					}
					return a
				case slog.MessageKey, slog.SourceKey:
					return a
				}
			}

			if sensitiveKeys[strings.ToLower(a.Key)] {
				return slog.String(a.Key, redacted)
			}
			switch a.Value.Kind() {
			case slog.KindString:
				if s := a.Value.String(); sensitiveParam.MatchString(s) {
					return slog.String(a.Key, sensitiveParam.ReplaceAllString(s, "${1}"+redacted))
				}
			case slog.KindAny:
				return redact(groups, a)
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithOperation adds an operation name to the logger.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String("operation", operation))
}

// WithDriver tags the logger with a vendor driver name (nv, amf, mfx).
func WithDriver(logger *slog.Logger, driver string) *slog.Logger {
	return logger.With(slog.String("driver", driver))
}

// WithAdapter tags the logger with an adapter LUID.
func WithAdapter(logger *slog.Logger, luid int64) *slog.Logger {
	return logger.With(slog.Int64("luid", luid))
}

// WithSession tags the logger with a codec session id.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With(slog.String("session_id", sessionID))
}

// WithError adds an error to the logger attributes.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}

// LoggerFromContext extracts a logger from the context.
// If no logger is found, returns the default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// ProbeRunIDFromContext extracts a probe run id from the context.
func ProbeRunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ProbeRunIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithProbeRunID stores a probe run id in the context and tags the
// context logger with it.
func ContextWithProbeRunID(ctx context.Context, runID string) context.Context {
	logger := LoggerFromContext(ctx).With(slog.String("probe_run_id", runID))
	ctx = context.WithValue(ctx, ProbeRunIDKey, runID)
	return ContextWithLogger(ctx, logger)
}

// SessionIDFromContext extracts a session id from the context.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithSessionID adds a session id to the context.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// TimedOperation logs the start and end of an operation with duration.
//
//	done := observability.TimedOperation(ctx, logger, "probe")
//	defer done()
func TimedOperation(ctx context.Context, logger *slog.Logger, operation string) func() {
	start := time.Now()
	logger.DebugContext(ctx, "operation started", slog.String("operation", operation))

	return func() {
		logger.InfoContext(ctx, "operation completed",
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// TimedOperationWithError is like TimedOperation but reports failure when
// *errPtr is non-nil by the time the returned function runs.
//
//nolint:gocritic // errPtr must be a pointer to capture errors set after this call
func TimedOperationWithError(ctx context.Context, logger *slog.Logger, operation string, errPtr *error) func() {
	start := time.Now()
	logger.DebugContext(ctx, "operation started", slog.String("operation", operation))

	return func() {
		elapsed := time.Since(start)
		if errPtr != nil && *errPtr != nil {
			logger.ErrorContext(ctx, "operation failed",
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
				slog.String("error", (*errPtr).Error()),
			)
			return
		}
		logger.InfoContext(ctx, "operation completed",
			slog.String("operation", operation),
			slog.Duration("duration", elapsed),
		)
	}
}
