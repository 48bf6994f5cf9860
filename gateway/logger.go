package gateway

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from the log setting.
func NewLogger(setting LogSetting) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(setting.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", setting.Level, err)
	}

	cfg := zap.NewProductionConfig()
	if setting.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}
