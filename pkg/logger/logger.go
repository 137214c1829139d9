package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
	FatalLevel = "fatal"
)

var defaultLogger *zap.Logger

func init() {
	// stdout at info until the entry point applies the configured level
	if err := InitLogger(InfoLevel, ""); err != nil {
		panic(err)
	}
}

// ParseLevel maps a level name to a zap level. Unknown names fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger replaces the package logger. An empty filePath logs to stdout
// with the console encoder, otherwise JSON lines are appended to the file.
func InitLogger(level, filePath string) error {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var core zapcore.Core
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), ParseLevel(level))
	} else {
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), ParseLevel(level))
	}

	defaultLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return nil
}

// SetLogger swaps the package logger and returns the previous one.
func SetLogger(l *zap.Logger) *zap.Logger {
	prev := defaultLogger
	defaultLogger = l
	return prev
}

// Sync flushes buffered entries.
func Sync() error {
	return defaultLogger.Sync()
}

// Debug logs a debug message with fields
func Debug(msg string, fields ...interface{}) {
	defaultLogger.Sugar().Debugw(msg, fields...)
}

// Info logs an info message with fields
func Info(msg string, fields ...interface{}) {
	defaultLogger.Sugar().Infow(msg, fields...)
}

// Warn logs a warning message with fields
func Warn(msg string, fields ...interface{}) {
	defaultLogger.Sugar().Warnw(msg, fields...)
}

// Error logs an error message with fields
func Error(msg string, fields ...interface{}) {
	defaultLogger.Sugar().Errorw(msg, fields...)
}

// Fatal logs a fatal message with fields and exits
func Fatal(msg string, fields ...interface{}) {
	defaultLogger.Sugar().Fatalw(msg, fields...)
}

// With creates a child logger with fields. The child is bound to the logger
// current at call time, so components capture it once at construction.
func With(fields ...interface{}) *zap.SugaredLogger {
	return defaultLogger.WithOptions(zap.AddCallerSkip(-1)).Sugar().With(fields...)
}
