package logger

import (
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"go.uber.org/zap"
)

// ZapAdapter adapts zap.Logger to the Logger port
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapAdapter wraps an existing zap logger
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger: logger}
}

// NewDevelopment creates a development logger
func NewDevelopment() (*ZapAdapter, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &ZapAdapter{logger: logger}, nil
}

// NewProduction creates a production logger
func NewProduction() (*ZapAdapter, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &ZapAdapter{logger: logger}, nil
}

// Zap exposes the underlying logger for middleware that needs it directly
func (z *ZapAdapter) Zap() *zap.Logger {
	return z.logger
}

// Sync flushes buffered log entries
func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

// Info logs an info message
func (z *ZapAdapter) Info(msg string, fields ...ports.Field) {
	z.logger.Info(msg, convertFields(fields)...)
}

// Error logs an error message
func (z *ZapAdapter) Error(msg string, fields ...ports.Field) {
	z.logger.Error(msg, convertFields(fields)...)
}

// Warn logs a warning message
func (z *ZapAdapter) Warn(msg string, fields ...ports.Field) {
	z.logger.Warn(msg, convertFields(fields)...)
}

// Debug logs a debug message
func (z *ZapAdapter) Debug(msg string, fields ...ports.Field) {
	z.logger.Debug(msg, convertFields(fields)...)
}

func convertFields(fields []ports.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		zapFields[i] = zap.Any(f.Key, f.Value)
	}
	return zapFields
}
