package logger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tracker/pkg/logger"
)

func newObservedLogger(t *testing.T) (*logger.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.New(zap.New(core)), logs
}

func TestNewLogger(t *testing.T) {
	levels := []string{"debug", "info", "warn", "warning", "error", "invalid", ""}

	for _, env := range []logger.Environment{logger.Development, logger.Production} {
		for _, level := range levels {
			t.Run(string(env)+"/level="+level, func(t *testing.T) {
				log, err := logger.NewLogger(env, level)
				require.NoError(t, err)
				require.NotNil(t, log)
			})
		}
	}
}

func TestFromContext(t *testing.T) {
	t.Run("success when logger exists in context", func(t *testing.T) {
		testLogger, _ := newObservedLogger(t)
		ctx := logger.NewContext(context.Background(), testLogger)

		retrieved, err := logger.FromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, testLogger, retrieved)
	})

	t.Run("error when no logger in context", func(t *testing.T) {
		retrieved, err := logger.FromContext(context.Background())
		require.Error(t, err)
		assert.Nil(t, retrieved)
		assert.ErrorIs(t, err, logger.ErrLoggerNotFound)
	})

	t.Run("error when context has non-logger values", func(t *testing.T) {
		type ctxKeyType struct{}
		ctx := context.WithValue(context.Background(), ctxKeyType{}, "not a logger")

		_, err := logger.FromContext(ctx)
		assert.ErrorIs(t, err, logger.ErrLoggerNotFound)
	})
}

func TestLog(t *testing.T) {
	t.Run("logger from context has priority over global logger", func(t *testing.T) {
		global, _ := newObservedLogger(t)
		local, _ := newObservedLogger(t)
		logger.SetGlobalLogger(global)
		t.Cleanup(func() { logger.SetGlobalLogger(nil) })

		ctx := logger.NewContext(context.Background(), local)
		assert.Same(t, local, logger.Log(ctx))
		assert.Same(t, global, logger.Log(context.Background()))
	})

	t.Run("returns the same fallback logger when nothing is configured", func(t *testing.T) {
		logger.SetGlobalLogger(nil)
		first := logger.Log(context.Background())
		second := logger.Log(context.Background())
		require.NotNil(t, first)
		assert.Same(t, first, second)
	})
}

func TestContextWith(t *testing.T) {
	base, logs := newObservedLogger(t)
	ctx := logger.NewContext(context.Background(), base)

	ctx = logger.ContextWith(ctx, zap.String("component", "gateway"))
	logger.Log(ctx).Info(ctx, "tagged")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "gateway", entries[0].ContextMap()["component"])
}

func TestRequestIDIsAddedToEntries(t *testing.T) {
	log, logs := newObservedLogger(t)

	t.Run("context with request ID adds field", func(t *testing.T) {
		ctx := logger.NewRequestIDContext(context.Background(), "req-42")
		log.Info(ctx, "with id", zap.String("key", "value"))

		entry := logs.TakeAll()[0]
		fields := entry.ContextMap()
		assert.Equal(t, "req-42", fields[logger.RequestID])
		assert.Equal(t, "value", fields["key"])
	})

	t.Run("context without request ID does not add field", func(t *testing.T) {
		log.Warn(context.Background(), "without id")

		entry := logs.TakeAll()[0]
		_, ok := entry.ContextMap()[logger.RequestID]
		assert.False(t, ok)
	})
}

func TestNewRequestIDContext(t *testing.T) {
	t.Run("stores provided request ID", func(t *testing.T) {
		ctx := logger.NewRequestIDContext(context.Background(), "provided")
		id, ok := logger.GetRequestID(ctx)
		require.True(t, ok)
		assert.Equal(t, "provided", id)
	})

	t.Run("generates a UUID when empty string provided", func(t *testing.T) {
		ctx := logger.NewRequestIDContext(context.Background(), "")
		id, ok := logger.GetRequestID(ctx)
		require.True(t, ok)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("generated IDs are unique", func(t *testing.T) {
		assert.NotEqual(t, logger.GenerateRequestID(), logger.GenerateRequestID())
	})
}

func TestRequestIDFor(t *testing.T) {
	ctx := logger.NewRequestIDContext(context.Background(), "kept")
	assert.Equal(t, "kept", logger.RequestIDFor(ctx))

	generated := logger.RequestIDFor(context.Background())
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestWithRequestID(t *testing.T) {
	log, _ := newObservedLogger(t)

	withID := log.WithRequestID(logger.NewRequestIDContext(context.Background(), "abc"))
	assert.NotSame(t, log, withID)

	withoutID := log.WithRequestID(context.Background())
	assert.Same(t, log, withoutID)
}
