// Package log wraps zap behind the small field-map interface used across nimbus.
package log

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global Logger = newZapLogger(false, zapcore.InfoLevel)
)

// Logger is the logging contract handed to every nimbus component.
type Logger interface {
	Info(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Debug(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Panic(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)
}

// SetLogger replaces the global logger instance.
func SetLogger(l Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

// GetLogger returns the current global logger instance.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Configure builds the global logger for env ("dev" or "prod") at the given level.
func Configure(env, level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	SetLogger(newZapLogger(env != "prod", lvl))
	return nil
}

func Info(fields map[string]any, msg string)  { GetLogger().Info(fields, msg) }
func Error(fields map[string]any, msg string) { GetLogger().Error(fields, msg) }
func Debug(fields map[string]any, msg string) { GetLogger().Debug(fields, msg) }
func Warn(fields map[string]any, msg string)  { GetLogger().Warn(fields, msg) }
func Panic(fields map[string]any, msg string) { GetLogger().Panic(fields, msg) }
func Fatal(fields map[string]any, msg string) { GetLogger().Fatal(fields, msg) }

type zapLogger struct {
	base *zap.Logger
}

func newZapLogger(dev bool, level zapcore.Level) Logger {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return &zapLogger{base: logger}
}

func (l *zapLogger) Info(fields map[string]any, msg string) {
	l.base.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(fields map[string]any, msg string) {
	l.base.Error(msg, zapFields(fields)...)
}

func (l *zapLogger) Debug(fields map[string]any, msg string) {
	l.base.Debug(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(fields map[string]any, msg string) {
	l.base.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Panic(fields map[string]any, msg string) {
	l.base.Panic(msg, zapFields(fields)...)
}

func (l *zapLogger) Fatal(fields map[string]any, msg string) {
	l.base.Fatal(msg, zapFields(fields)...)
}

func zapFields(m map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		if err, ok := v.(error); ok {
			fields = append(fields, zap.NamedError(k, err))
			continue
		}
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

type noopLogger struct{}

func (noopLogger) Info(map[string]any, string)  {}
func (noopLogger) Error(map[string]any, string) {}
func (noopLogger) Debug(map[string]any, string) {}
func (noopLogger) Warn(map[string]any, string)  {}
func (noopLogger) Panic(map[string]any, string) {}
func (noopLogger) Fatal(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }

// Entry is one message captured by a Recorder.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// Recorder is a Logger that keeps every entry in memory. Tests use it to
// assert that a component logged a given event.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) add(level string, fields map[string]any, msg string) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
	r.mu.Unlock()
}

func (r *Recorder) Info(f map[string]any, msg string)  { r.add("info", f, msg) }
func (r *Recorder) Error(f map[string]any, msg string) { r.add("error", f, msg) }
func (r *Recorder) Debug(f map[string]any, msg string) { r.add("debug", f, msg) }
func (r *Recorder) Warn(f map[string]any, msg string)  { r.add("warn", f, msg) }
func (r *Recorder) Panic(f map[string]any, msg string) { r.add("panic", f, msg) }
func (r *Recorder) Fatal(f map[string]any, msg string) { r.add("fatal", f, msg) }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Has reports whether a message with the given text was recorded.
func (r *Recorder) Has(msg string) bool {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return true
		}
	}
	return false
}
