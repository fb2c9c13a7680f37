package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gatekit/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Run("creates JSON logger", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello")

		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text formatter option", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithTextFormatter())
		log.Info("hello")

		assert.Contains(t, buf.String(), "level=INFO")
	})

	t.Run("includes static attributes", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("svc", "test")))
		log.Info("msg")

		assert.Equal(t, "test", decode(t, buf)["svc"])
	})

	t.Run("session and user come from context", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))

		ctx := logger.WithSession(context.Background(), "s-1")
		ctx = logger.WithUser(ctx, "u-1")
		log.InfoContext(ctx, "ctx")

		entry := decode(t, buf)
		assert.Equal(t, "s-1", entry["session_id"])
		assert.Equal(t, "u-1", entry["user_id"])
	})

	t.Run("explicit attribute wins over context value", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))

		ctx := logger.WithUser(context.Background(), "from-ctx")
		log.InfoContext(ctx, "ctx", logger.UserID("explicit"))

		assert.Equal(t, "explicit", decode(t, buf)["user_id"])
	})

	t.Run("custom context value", func(t *testing.T) {
		type key struct{}
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithContextValue("trace", key{}))

		log.InfoContext(context.WithValue(context.Background(), key{}, "t-9"), "ctx")
		assert.Equal(t, "t-9", decode(t, buf)["trace"])
	})
}

func TestWithEnvironment(t *testing.T) {
	t.Run("development is debug text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("dev", "gatekit"), logger.WithOutput(buf))
		log.Debug("msg")

		out := buf.String()
		assert.Contains(t, out, "DEBUG")
		assert.Contains(t, out, "service=gatekit")
		assert.Contains(t, out, "env=development")
	})

	t.Run("production is info json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("prod", "gatekit"), logger.WithOutput(buf))
		log.Debug("hidden")
		assert.Empty(t, buf.String())

		log.Info("msg")
		entry := decode(t, buf)
		assert.Equal(t, "production", entry["env"])
	})
}

func TestWithFormatPanics(t *testing.T) {
	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("xml")))
	})
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Discard().Error("dropped", logger.Error(assert.AnError))
	})
}
