package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Defaults(t *testing.T) {
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestZapLogger_FieldsAndNames(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core)

	l.Named("incident").With(String("subject", "u1")).Info("triggered",
		Int("seq", 1), Bool("first", true))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "triggered", entries[0].Message)
	assert.Equal(t, "incident", entries[0].LoggerName)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "u1", ctx["subject"])
	assert.Equal(t, int64(1), ctx["seq"])
	assert.Equal(t, true, ctx["first"])
}

func TestErr_NilError(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger_IsInert(t *testing.T) {
	l := NewNopLogger()
	l.Info("ignored")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	SetDefault(nil)
	require.NotNil(t, Default())
}
