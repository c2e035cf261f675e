// Package zaplogger implements types.Logger on top of zap.
package zaplogger

import (
	"fmt"
	"maps"
	"slices"

	"github.com/slackmgr/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a types.Logger backed by a zap.SugaredLogger.
type Logger struct {
	s *zap.SugaredLogger
}

var _ types.Logger = (*Logger)(nil)

// New builds a JSON production logger at the given level
// ("debug", "info", "warn" or "error").
func New(level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.LevelKey = "severity"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return Wrap(l), nil
}

// Wrap adapts an existing zap logger.
func Wrap(l *zap.Logger) *Logger {
	return &Logger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.s.Sync()
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *Logger) WithField(key string, value any) types.Logger {
	return &Logger{s: l.s.With(key, value)}
}

// WithFields adds all fields in key order, so the output is stable.
//
//nolint:ireturn // Must return interface to implement types.Logger
func (l *Logger) WithFields(fields map[string]any) types.Logger {
	args := make([]any, 0, len(fields)*2)

	for _, k := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, k, fields[k])
	}

	return &Logger{s: l.s.With(args...)}
}

func (l *Logger) Debug(msg string)                  { l.s.Debug(msg) }
func (l *Logger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *Logger) Info(msg string)                   { l.s.Info(msg) }
func (l *Logger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *Logger) Error(msg string)                  { l.s.Error(msg) }
func (l *Logger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
