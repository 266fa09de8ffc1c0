package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestVerbosityToLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(zapcore.WarnLevel, 0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(zapcore.WarnLevel, 1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(zapcore.InfoLevel, 1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(zapcore.WarnLevel, 3))
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Options{JSON: true, Level: "warn", Output: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("allowing unverified include", zap.String("path", "/x.mg"))
	require.NoError(t, l.Sync())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "allowing unverified include", rec["msg"])
	assert.Equal(t, "/x.mg", rec["path"])
}

func TestNew_Console(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Options{Verbosity: 2, Output: &buf})
	require.NoError(t, err)
	l.Debug("including prompt file", zap.Int("depth", 1))
	require.NoError(t, l.Sync())

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "including prompt file")
	assert.Contains(t, out, `"depth": 1`)

	_, err = New(Options{Level: "nope"})
	require.Error(t, err)
}
