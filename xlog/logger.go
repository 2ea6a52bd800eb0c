// Package xlog provides the module's structured logger: a small geth/lux
// style interface (With/Debug/Info/Warn/Error) backed directly by
// go.uber.org/zap, the library the teacher's own log package wraps.
package xlog

import "go.uber.org/zap"

// Logger is the structured logging surface used throughout the module.
type Logger interface {
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

type zapLogger struct {
	l *zap.Logger
}

// New wraps a zap.Logger.
func New(l *zap.Logger) Logger {
	return zapLogger{l: l}
}

// NewDevelopment returns a human-readable development logger.
func NewDevelopment() Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return New(l)
}

func (z zapLogger) With(fields ...zap.Field) Logger { return zapLogger{l: z.l.With(fields...)} }
func (z zapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z zapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z zapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z zapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }

// NoOp is a logger implementation that discards everything, mirroring the
// teacher's NoLog/NewNoOpLogger pattern for use in tests.
type NoOp struct{}

// NewNoOp returns a Logger that discards everything.
func NewNoOp() Logger { return NoOp{} }

func (NoOp) With(fields ...zap.Field) Logger         { return NoOp{} }
func (NoOp) Debug(msg string, fields ...zap.Field) {}
func (NoOp) Info(msg string, fields ...zap.Field)  {}
func (NoOp) Warn(msg string, fields ...zap.Field)  {}
func (NoOp) Error(msg string, fields ...zap.Field) {}
