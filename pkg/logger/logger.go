// Package logger provides the structured logger used across the service.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls the behaviour of a Logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is "json" or "text". Defaults to text.
	Format string
	// Output is "stdout" or "stderr". Defaults to stdout.
	Output string
}

// Logger wraps a logrus entry with the configuration it was built from.
type Logger struct {
	entry *logrus.Entry
	base  *logrus.Logger
}

// New constructs a Logger from the given configuration.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if cfg.Format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		base.SetOutput(os.Stderr)
	} else {
		base.SetOutput(os.Stdout)
	}

	return &Logger{entry: logrus.NewEntry(base), base: base}
}

// NewDefault returns an info-level text logger tagged with a component name.
func NewDefault(component string) *Logger {
	log := New(LoggingConfig{})
	return log.WithField("component", component)
}

// SetOutput redirects all log output, e.g. to io.Discard in examples.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// WithField returns a logger with an additional structured field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value), base: l.base}
}

// WithError returns a logger with the error attached as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err), base: l.base}
}

// Debug logs a message at debug level.
func (l *Logger) Debug(args ...any) { l.entry.Debug(args...) }

// Info logs a message at info level.
func (l *Logger) Info(args ...any) { l.entry.Info(args...) }

// Warn logs a message at warn level.
func (l *Logger) Warn(args ...any) { l.entry.Warn(args...) }

// Error logs a message at error level.
func (l *Logger) Error(args ...any) { l.entry.Error(args...) }

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) { l.entry.Infof(format, args...) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) { l.entry.Warnf(format, args...) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
