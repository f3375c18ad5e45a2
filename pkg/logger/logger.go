// Package logger provides structured logging utilities.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents logging severity.
type Level int8

const (
	LevelDebug = Level(zapcore.DebugLevel)
	LevelInfo  = Level(zapcore.InfoLevel)
	LevelWarn  = Level(zapcore.WarnLevel)
	LevelError = Level(zapcore.ErrorLevel)
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel parses a string into a Level. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a structured JSON logger backed by zap.
type Logger struct {
	zl *zap.Logger
}

// New creates a new Logger writing JSON lines to output at the given level.
func New(output io.Writer, level string) *Logger {
	if output == nil {
		output = os.Stdout
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(output)),
		zapcore.Level(ParseLevel(level)),
	)

	return &Logger{zl: zap.New(core)}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// With returns a new Logger with additional fields.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{zl: l.zl.With(fields(keyvals)...)}
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.zl.Debug(msg, fields(keyvals)...)
}

// Info logs a message at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.zl.Info(msg, fields(keyvals)...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.zl.Warn(msg, fields(keyvals)...)
}

// Error logs a message at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.zl.Error(msg, fields(keyvals)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// fields converts alternating key/value pairs to zap fields.
// Pairs with a non-string key are dropped, as is a trailing key without a value.
func fields(keyvals []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals)-1; i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		out = append(out, zap.Any(key, keyvals[i+1]))
	}
	return out
}
