package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_LevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core))
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	wantMsgs := []string{"dbg", "inf", "wrn", "err"}
	for i, e := range entries {
		assert.Equal(t, wantLevels[i], e.Level)
		assert.Equal(t, wantMsgs[i], e.Message)
		assert.Len(t, e.Context, 1)
	}
	assert.Equal(t, int64(2), entries[1].ContextMap()["b"])
}

func TestZapLogger_With(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapLogger(zap.New(core)).With("module", "ledger")

	log.Info(context.Background(), "posted", "tx", "t-1")

	entries := logs.FilterMessage("posted").AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ledger", fields["module"])
	assert.Equal(t, "t-1", fields["tx"])
}

func TestNewZapLoggerTo_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewZapLoggerTo(&buf)
	log.Info(context.Background(), "hello", "k", "v")
	require.NoError(t, log.Sync())

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestNew_SelectsBackend(t *testing.T) {
	var buf bytes.Buffer

	for _, f := range []string{"", FormatJSON, FormatText} {
		l, err := New(f, &buf)
		require.NoError(t, err)
		assert.IsType(t, &SlogLogger{}, l)
	}

	l, err := New(FormatZap, &buf)
	require.NoError(t, err)
	assert.IsType(t, &ZapLogger{}, l)

	_, err = New("xml", &buf)
	require.Error(t, err)
}
