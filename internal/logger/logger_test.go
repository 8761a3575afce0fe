package logger

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/taller/internal/config"
)

func TestBuildHonoursLevel(t *testing.T) {
	logger, err := Build(config.Observability{ServiceName: "taller", LogLevel: "WARN", LogEncoding: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestBuildFallsBackToInfo(t *testing.T) {
	logger, err := Build(config.Observability{LogLevel: "verbose", LogEncoding: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestIgnoreSyncError(t *testing.T) {
	assert.NoError(t, ignoreSyncError(nil))
	assert.NoError(t, ignoreSyncError(fmt.Errorf("sync /dev/stdout: %w", syscall.EINVAL)))
	assert.Error(t, ignoreSyncError(assert.AnError))
}
