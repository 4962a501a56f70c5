package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin wrapper around a zap.SugaredLogger shared by every SDK
// component. Components never construct their own loggers; they receive one
// from the client and derive named children from it.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a production zap logger at the given level. Debug output is
// disabled unless debug is true.
func New(debug bool) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: l.Sugar()}, nil
}

// NewFromZap wraps an existing zap logger, for hosts that already carry one.
func NewFromZap(l *zap.Logger) *Logger {
	return &Logger{sugar: l.Sugar()}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Named returns a child logger with the given name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name)}
}

func (l *Logger) Debug(args ...interface{}) { l.sugar.Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.sugar.Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.sugar.Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.sugar.Error(args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
