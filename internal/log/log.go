// Package log wraps zap the way icegreg-chat-smpl/pkg/logger does, but
// scoped down to what the ESL client runtime needs: a small structured
// Logger interface that is always passed explicitly, never read off a
// package-level global (see SPEC_FULL.md §9 on replacing singletons).
package log

import "go.uber.org/zap"

// Logger is the structured logging surface used throughout this module.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
}

type zapLogger struct {
	l *zap.Logger
}

// New wraps an existing *zap.Logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// NewProduction builds a production zap.Logger and wraps it. Callers that
// want development formatting should build their own *zap.Logger and use
// New instead.
func NewProduction() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

// NewNop returns a Logger that discards everything, safe as the zero
// value for structs that embed a Logger field.
func NewNop() Logger {
	return New(zap.NewNop())
}

func (z *zapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }

func (z *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}
