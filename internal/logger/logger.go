package logger

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/taller/internal/config"
)

// Module exposes a configured Zap logger to the Fx container.
var Module = fx.Provide(New)

// New builds the service logger; Fx flushes it on stop.
func New(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, err := Build(cfg.Observability)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ignoreSyncError(logger.Sync())
		},
	})

	return logger, nil
}

// Build creates a Zap logger for the given settings. LogEncoding "console" selects the
// human readable development encoder; anything else logs JSON.
func Build(observability config.Observability) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(observability.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = "json"
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	zapCfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	if observability.LogEncoding == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.With(
		zap.String("service", observability.ServiceName),
		zap.String("environment", observability.Environment),
	), nil
}

// Syncing stdout or stderr fails on terminals and pipes; that is not worth failing shutdown.
func ignoreSyncError(err error) error {
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}
