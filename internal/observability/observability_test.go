package observability

import (
	"context"
	"testing"

	"go-pos-ledger/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}

func TestLoggers(t *testing.T) {
	log := NewLogger("warn")
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	bridged := WithOTelBridge("info")
	assert.True(t, bridged.Core().Enabled(zapcore.InfoLevel))
}

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, shutdown(context.Background()))
}
