package observability

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogrusOptions configures the logrus-backed logger.
type LogrusOptions struct {
	Level  string
	Format string
	Output io.Writer
	Fields []Field
}

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus builds a Logger that writes through logrus.
func NewLogrus(opts LogrusOptions) Logger {
	base := logrus.New()
	if opts.Output != nil {
		base.SetOutput(opts.Output)
	}
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)
	return &logrusLogger{entry: logrus.NewEntry(base).WithFields(toLogrusFields(opts.Fields))}
}

func (l *logrusLogger) Debug(msg string, fields ...Field) {
	l.entry.WithFields(toLogrusFields(fields)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields ...Field) {
	l.entry.WithFields(toLogrusFields(fields)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields ...Field) {
	l.entry.WithFields(toLogrusFields(fields)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, fields ...Field) {
	l.entry.WithFields(toLogrusFields(fields)).Error(msg)
}

func toLogrusFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			continue
		}
		if err, ok := f.Value.(error); ok && err != nil {
			out[key] = err.Error()
			continue
		}
		out[key] = f.Value
	}
	return out
}
