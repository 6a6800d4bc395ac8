// Package log provides structured logging for go-avatar.
// It wraps zap with sensible defaults for production use.
package log

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the global logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "console" or "json". Empty picks json when GO_ENV=production.
	Format string `mapstructure:"format" yaml:"format"`

	// File enables rotating JSON file output in addition to stdout.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DefaultConfig returns info-level console logging to stdout.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

var (
	logger atomic.Pointer[zap.SugaredLogger]
	once   sync.Once
)

// Init initializes the global logger. Only the first call has effect.
func Init(cfg Config) {
	once.Do(func() {
		logger.Store(build(cfg, zapcore.Lock(os.Stdout)).Sugar())
	})
}

func build(cfg Config, out zapcore.WriteSyncer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	format := cfg.Format
	if format == "" {
		format = "console"
		if os.Getenv("GO_ENV") == "production" {
			format = "json"
		}
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder(format), out, level)}
	if cfg.File != "" {
		// File output is always JSON.
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), w, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	if format == "json" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// SetLogger replaces the global logger. Tests use it to install observers.
func SetLogger(l *zap.Logger) {
	logger.Store(l.Sugar())
}

// L returns the global logger instance.
func L() *zap.SugaredLogger {
	if l := logger.Load(); l != nil {
		return l
	}
	Init(DefaultConfig())
	return logger.Load()
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debugw(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Infow(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warnw(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Errorw(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *zap.SugaredLogger {
	return L().With(args...)
}

// Sync flushes buffered output.
func Sync() error {
	return L().Sync()
}
