package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hwcodec/internal/config"
)

func newTestLogger(level string) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLoggerWithWriter(config.LoggingConfig{Level: level, Format: "json"}, &buf), &buf
}

func TestNewLogger_JSONFormat(t *testing.T) {
	logger, buf := newTestLogger("info")
	logger.Info("test message", slog.String("key", "value"))

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, `"key":"value"`)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &parsed))
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	logger.Info("test message", slog.String("key", "value"))

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "key=value")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    slog.Level
		shouldLog   bool
	}{
		{"debug_logs_at_debug_level", "debug", slog.LevelDebug, true},
		{"info_does_not_log_debug", "info", slog.LevelDebug, false},
		{"info_logs_at_info_level", "info", slog.LevelInfo, true},
		{"warn_does_not_log_info", "warn", slog.LevelInfo, false},
		{"error_logs_at_error_level", "error", slog.LevelError, true},
		{"trace_logs_at_trace_level", "trace", LevelTrace, true},
		{"debug_does_not_log_trace", "debug", LevelTrace, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger(tt.configLevel)
			logger.Log(context.Background(), tt.logLevel, "test")

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestTraceLevelDisplay(t *testing.T) {
	logger, buf := newTestLogger("trace")
	logger.Log(context.Background(), LevelTrace, "frame submitted")

	assert.Contains(t, buf.String(), `"level":"TRACE"`)
	assert.NotContains(t, buf.String(), "DEBUG-4")
}

func TestNewLogger_CustomTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: "info", Format: "json", TimeFormat: "2006-01-02"}
	NewLoggerWithWriter(cfg, &buf).Info("test message")

	assert.Contains(t, buf.String(), time.Now().Format("2006-01-02"))
}

func TestWithHelpers(t *testing.T) {
	t.Run("driver_adapter_session", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		WithSession(WithAdapter(WithDriver(logger, "nv"), 42), "sess-1").Info("created")

		output := buf.String()
		assert.Contains(t, output, `"driver":"nv"`)
		assert.Contains(t, output, `"luid":42`)
		assert.Contains(t, output, `"session_id":"sess-1"`)
	})

	t.Run("component_and_operation", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		WithOperation(WithComponent(logger, "probe"), "encode").Info("test")

		assert.Contains(t, buf.String(), `"component":"probe"`)
		assert.Contains(t, buf.String(), `"operation":"encode"`)
	})

	t.Run("error", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		WithError(logger, errors.New("device lost")).Info("test")
		assert.Contains(t, buf.String(), `"error":"device lost"`)
	})

	t.Run("nil_error", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		WithError(logger, nil).Info("test")
		assert.NotContains(t, buf.String(), `"error"`)
	})
}

func TestContextValues(t *testing.T) {
	t.Run("logger_round_trip", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		LoggerFromContext(ContextWithLogger(context.Background(), logger)).Info("from context")
		assert.Contains(t, buf.String(), "from context")
	})

	t.Run("default_logger", func(t *testing.T) {
		assert.NotNil(t, LoggerFromContext(context.Background()))
	})

	t.Run("probe_run_id_tags_logger", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		ctx := ContextWithProbeRunID(ContextWithLogger(context.Background(), logger), "run-7")

		assert.Equal(t, "run-7", ProbeRunIDFromContext(ctx))
		LoggerFromContext(ctx).Info("probing")
		assert.Contains(t, buf.String(), `"probe_run_id":"run-7"`)
	})

	t.Run("session_id", func(t *testing.T) {
		ctx := ContextWithSessionID(context.Background(), "sess-9")
		assert.Equal(t, "sess-9", SessionIDFromContext(ctx))
		assert.Empty(t, SessionIDFromContext(context.Background()))
		assert.Empty(t, ProbeRunIDFromContext(context.Background()))
	})
}

func TestTimedOperation(t *testing.T) {
	logger, buf := newTestLogger("debug")
	done := TimedOperation(context.Background(), logger, "probe_adapters")
	done()

	output := buf.String()
	assert.Contains(t, output, "operation started")
	assert.Contains(t, output, "operation completed")
	assert.Contains(t, output, "probe_adapters")
	assert.Contains(t, output, "duration")
}

func TestTimedOperationWithError(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		var err error
		done := TimedOperationWithError(context.Background(), logger, "success_op", &err)
		done()

		assert.Contains(t, buf.String(), "operation completed")
		assert.NotContains(t, buf.String(), "operation failed")
	})

	t.Run("failure", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		var err error
		done := TimedOperationWithError(context.Background(), logger, "failure_op", &err)
		err = errors.New("adapter vanished")
		done()

		assert.Contains(t, buf.String(), "operation failed")
		assert.Contains(t, buf.String(), "adapter vanished")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestSensitiveDataRedaction(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		value     string
	}{
		{"password_lowercase", "password", "secret123"},
		{"password_capitalized", "Password", "MyP@ssw0rd"},
		{"token", "token", "jwt-token-abc"},
		{"api_key_snake_case", "api_key", "api-key-value"},
		{"credential", "Credential", "CRED-XYZ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger("info")
			logger.Info("test message", slog.String(tt.fieldName, tt.value))

			assert.NotContains(t, buf.String(), tt.value)
			assert.Contains(t, buf.String(), redacted)
		})
	}

	t.Run("nested_group", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		logger.Info("connect",
			slog.Group("database",
				slog.String("user", "admin"),
				slog.String("password", "secret123"),
			),
		)

		assert.Contains(t, buf.String(), "admin")
		assert.NotContains(t, buf.String(), "secret123")
	})

	t.Run("dsn_query_parameter", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		logger.Info("opening database", slog.String("target", "postgres://db/hwcodec?sslmode=disable&password=hunter2"))

		assert.NotContains(t, buf.String(), "hunter2")
		assert.Contains(t, buf.String(), "password="+redacted)
		assert.Contains(t, buf.String(), "sslmode=disable")
	})

	t.Run("secret_typed_value", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		logger.Info("opening database", slog.Any("dsn", Secret("user:hunter2@tcp(db)/hwcodec")))

		assert.NotContains(t, buf.String(), "hunter2")
	})

	t.Run("plain_values_untouched", func(t *testing.T) {
		logger, buf := newTestLogger("info")
		logger.Info("probe", slog.String("adapter", "NVIDIA RTX 4090"), slog.Int("luid", 1))

		assert.Contains(t, buf.String(), "NVIDIA RTX 4090")
		assert.NotContains(t, buf.String(), redacted)
	})
}
