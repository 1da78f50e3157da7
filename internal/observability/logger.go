// Package observability holds the logging abstraction shared by every component.
package observability

import "sync/atomic"

// Logger is the structured logger components receive by injection.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type loggerBox struct{ Logger }

var global atomic.Pointer[loggerBox]

func init() {
	global.Store(&loggerBox{noopLogger{}})
}

// SetLogger replaces the process-wide logger. nil restores the noop logger.
func SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	global.Store(&loggerBox{logger})
}

// Log returns the process-wide logger.
func Log() Logger {
	return global.Load().Logger
}

// Or returns logger, or the process-wide logger when logger is nil.
func Or(logger Logger) Logger {
	if logger == nil {
		return Log()
	}
	return logger
}

// Noop returns a logger that discards everything.
func Noop() Logger {
	return noopLogger{}
}

// With returns a logger that prefixes fields to every entry.
func With(logger Logger, fields ...Field) Logger {
	logger = Or(logger)
	if len(fields) == 0 {
		return logger
	}
	if inner, ok := logger.(scoped); ok {
		return scoped{next: inner.next, fields: inner.merge(fields)}
	}
	return scoped{next: logger, fields: append([]Field(nil), fields...)}
}

type scoped struct {
	next   Logger
	fields []Field
}

func (s scoped) merge(fields []Field) []Field {
	out := make([]Field, 0, len(s.fields)+len(fields))
	out = append(out, s.fields...)
	return append(out, fields...)
}

func (s scoped) Debug(msg string, fields ...Field) { s.next.Debug(msg, s.merge(fields)...) }
func (s scoped) Info(msg string, fields ...Field)  { s.next.Info(msg, s.merge(fields)...) }
func (s scoped) Warn(msg string, fields ...Field)  { s.next.Warn(msg, s.merge(fields)...) }
func (s scoped) Error(msg string, fields ...Field) { s.next.Error(msg, s.merge(fields)...) }

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}
