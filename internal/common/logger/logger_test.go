package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter_FieldsAreSortedAndTyped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"component": "search"})

	log.Warn("tier failed", map[string]interface{}{
		"tier":    "cache",
		"error":   errors.New("redis down"),
		"attempt": 2,
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	ctx := entry.ContextMap()
	assert.Equal(t, "search", ctx["component"])
	assert.Equal(t, "redis down", ctx["error"])
	assert.Equal(t, int64(2), ctx["attempt"])

	var keys []string
	for _, f := range entry.Context[1:] {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"attempt", "error", "tier"}, keys)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNew_BadOutputFallsBackToNop(t *testing.T) {
	l := New("info", "json", "/nonexistent-dir/app.log")
	assert.NotNil(t, l)
	l.Info("discarded")
}
