package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level string
	// Dev selects the colored console encoder, otherwise JSON is written.
	Dev bool
	// Quiet raises the level to warn, used when APP_ENV=test.
	Quiet bool
}

type Logger struct {
	zl    *zap.Logger
	sugar *zap.SugaredLogger
}

func New(cfg Config) *Logger {
	lvl := levelFromString(cfg.Level)
	if cfg.Quiet && lvl < zapcore.WarnLevel {
		lvl = zapcore.WarnLevel
	}

	var enc zapcore.Encoder
	if cfg.Dev {
		enc = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:       "ts",
			LevelKey:      "level",
			NameKey:       "logger",
			CallerKey:     "caller",
			MessageKey:    "msg",
			StacktraceKey: "stack",
			LineEnding:    zapcore.DefaultLineEnding,
			EncodeTime:    zapcore.ISO8601TimeEncoder,
			EncodeLevel:   zapcore.CapitalColorLevelEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
		})
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	return newWithCore(zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), lvl))
}

// newWithCore skips one frame so the printf wrappers report their caller.
func newWithCore(core zapcore.Core) *Logger {
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{zl: zl, sugar: zl.Sugar()}
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Zap exposes the underlying logger for components that log structured
// fields, without the wrapper frame skip.
func (l *Logger) Zap() *zap.Logger {
	return l.zl.WithOptions(zap.AddCallerSkip(-1))
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// Global logger instance
var GlobalLogger = New(Config{Level: "info", Dev: true})

// Init replaces the global logger. Call once from main before anything logs.
func Init(cfg Config) *Logger {
	GlobalLogger = New(cfg)
	return GlobalLogger
}

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.Info(format, v...)
}

func Warn(format string, v ...interface{}) {
	GlobalLogger.Warn(format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.Error(format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.Debug(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.Fatal(format, v...)
}

// L returns the structured logger behind the global instance.
func L() *zap.Logger {
	return GlobalLogger.Zap()
}
