package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	require.NoError(t, Init("debug", "json"))
	require.NotNil(t, Logger())
	require.True(t, Logger().Core().Enabled(zapcore.DebugLevel))
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	require.NoError(t, Init("not-a-level", ""))
	require.NotNil(t, Logger())
	require.False(t, Logger().Core().Enabled(zapcore.DebugLevel))
}

func TestInitConsoleEncoding(t *testing.T) {
	require.NoError(t, Init("info", "console"))
	require.NotNil(t, WithModule("scheduler"))
}
