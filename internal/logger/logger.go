// Package logger provides leveled logging for the mediServe services.
// It wraps a process-wide zap logger behind printf-style package
// functions so call sites stay terse.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
)

func init() {
	l, _ := newLogger(zapcore.InfoLevel)
	sugar = l
}

func newLogger(level zapcore.Level) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// SetVerbose switches the process logger to debug level (or back).
func SetVerbose(v bool) {
	level := zapcore.InfoLevel
	if v {
		level = zapcore.DebugLevel
	}
	l, err := newLogger(level)
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	sugar = l
}

// Replace swaps in a custom zap logger. Useful for tests.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.Sugar()
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = sugar.Sync()
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Debugf(format, args...)
}

// Info logs a formatted message at info level.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Infof(format, args...)
}

// Warn logs a formatted message at warn level.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Warnf(format, args...)
}

// Error logs a formatted message at error level.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Errorf(format, args...)
}
