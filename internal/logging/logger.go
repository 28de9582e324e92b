package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured logger taking alternating key/value pairs.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger builds a development (console, debug level) or production (JSON,
// info level) logger.
func NewLogger(isDevelopment bool) *Logger {
	return build(isDevelopment, nil)
}

// NewWithLevel is NewLogger with an explicit minimum level such as "debug"
// or "warn". Unknown levels keep the mode's default.
func NewWithLevel(isDevelopment bool, level string) *Logger {
	lvl := new(zapcore.Level)
	if err := lvl.Set(level); err != nil {
		return build(isDevelopment, nil)
	}
	return build(isDevelopment, lvl)
}

func build(isDevelopment bool, level *zapcore.Level) *Logger {
	var cfg zap.Config
	if isDevelopment {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if level != nil {
		cfg.Level = zap.NewAtomicLevelAt(*level)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewExample()
	}
	return New(l)
}

// New wraps an existing zap logger.
func New(l *zap.Logger) *Logger {
	return &Logger{sugar: l.Sugar()}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return New(zap.NewNop())
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Log writes msg at the given level.
func (l *Logger) Log(_ context.Context, level zapcore.Level, msg string, keysAndValues ...any) {
	l.sugar.Logw(level, msg, keysAndValues...)
}

// With returns a child logger with the given key/value pairs attached.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

// WithFields returns a child logger with the given fields attached.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return l.With(kv...)
}

// Zap exposes the underlying logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// SetGlobal installs l as zap's process-wide logger, used through zap.L()
// by code that has no request logger at hand. The returned func restores
// the previous global.
func (l *Logger) SetGlobal() func() {
	return zap.ReplaceGlobals(l.sugar.Desugar().WithOptions(zap.AddCallerSkip(-1)))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
