package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. The production environment writes JSON,
// every other environment writes coloured console lines.
func NewLogger(level string, env string) (*zap.Logger, error) {
	var config zap.Config

	switch env {
	case "production":
		config = zap.NewProductionConfig()
		config.Encoding = "json"
	default:
		config = zap.NewDevelopmentConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ParseLevel falls back to info for unknown level names.
func ParseLevel(level string) zapcore.Level {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return zapLevel
}

func WithService(logger *zap.Logger, serviceName string) *zap.Logger {
	return logger.With(zap.String("service", serviceName))
}

// WithComponent names a sub-logger, e.g. "relay" or "kafka.consumer".
func WithComponent(logger *zap.Logger, component string) *zap.Logger {
	return logger.Named(component)
}
