// Package logger provides leveled structured logging backed by zap.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

// Init initializes the default logger with the specified level and format
// ("json" or "console").
func Init(level string, format string) {
	var l zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		l = zapcore.DebugLevel
	case "info":
		l = zapcore.InfoLevel
	case "warn":
		l = zapcore.WarnLevel
	case "error":
		l = zapcore.ErrorLevel
	default:
		l = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(l)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.ToLower(format) != "json" {
		cfg.Encoding = "console"
	}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		base = zap.NewNop()
	}
	sugar = base.Sugar()
}

func get() *zap.SugaredLogger {
	if sugar == nil {
		// Fallback for code paths that log before Init runs (tests, early startup).
		l, _ := zap.NewDevelopment(zap.AddCallerSkip(1))
		sugar = l.Sugar()
	}
	return sugar
}

func Debug(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	get().Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	get().Fatalf(format, args...)
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
