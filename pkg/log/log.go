package log

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a named logger. Every line carries a "[name>]" marker so output
// from different services can be told apart with grep.
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
}

// writerHolder keeps atomic.Value storing a single concrete type.
type writerHolder struct {
	w io.Writer
}

// switchWriter forwards writes to the current output so SetOutput reaches
// loggers that were already created.
type switchWriter struct {
	current atomic.Value // writerHolder
}

func (s *switchWriter) Write(p []byte) (int, error) {
	return s.current.Load().(writerHolder).w.Write(p)
}

func (s *switchWriter) Sync() error {
	if syncer, ok := s.current.Load().(writerHolder).w.(interface{ Sync() error }); ok {
		// stderr returns EINVAL on some platforms, not worth reporting
		_ = syncer.Sync()
	}
	return nil
}

var (
	globalDebug  atomic.Bool
	serviceDebug sync.Map // map[string]*atomic.Bool
	loggers      sync.Map // map[string]*Logger
	output       = &switchWriter{}
	core         zapcore.Core
)

func init() {
	output.current.Store(writerHolder{w: os.Stderr})

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "service",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName: func(name string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + name + ">]")
		},
	}
	// Debug is gated per logger in Debugf, the core lets everything through.
	core = zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(output)),
		zapcore.DebugLevel,
	)
}

// ForService returns (and memoizes) the logger for a service, importer or
// command. Names should be stable, e.g. "search" or "importer/chromium".
func ForService(name string) *Logger {
	if name == "" {
		name = "unknown"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	logger := &Logger{
		name:  name,
		sugar: zap.New(core).Named(name).Sugar(),
	}
	actual, _ := loggers.LoadOrStore(name, logger)
	return actual.(*Logger)
}

// SetGlobalDebug enables or disables debug output for every logger.
func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

// GlobalDebug reports whether debug output is globally enabled.
func GlobalDebug() bool {
	return globalDebug.Load()
}

// EnableDebugFor turns on debug output for a single service.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	val, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	val.(*atomic.Bool).Store(true)
}

// DisableDebugFor turns off the per-service debug override.
func DisableDebugFor(name string) {
	if val, ok := serviceDebug.Load(name); ok {
		val.(*atomic.Bool).Store(false)
	}
}

// DebugEnabledFor reports whether debug lines from name are emitted.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if val, ok := serviceDebug.Load(name); ok {
		return val.(*atomic.Bool).Load()
	}
	return false
}

// SetOutput redirects all loggers, existing ones included.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	output.current.Store(writerHolder{w: w})
}

// Flush syncs the underlying writer.
func Flush() {
	_ = output.Sync()
}

func (l *Logger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Debugf logs only when debug is enabled globally or for this logger.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.sugar.Debugf(format, args...)
}

// With returns a child logger carrying structured fields. The child shares
// the parent's name and debug switch.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{name: l.name, sugar: l.sugar.With(keysAndValues...)}
}

// Name returns the service name the logger was created with.
func (l *Logger) Name() string {
	return l.name
}
