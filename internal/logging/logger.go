package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a structured logger. Debug switches to the development
// level so per-stage pipeline logs become visible.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}
	return cfg.Build()
}

// WithOperation enriches the logger with operation and request identifiers.
func WithOperation(logger *zap.Logger, op Operation, requestID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", string(op))}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return logger.With(fields...)
}
