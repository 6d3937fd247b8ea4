// Package logging wraps a *logrus.Logger in a small façade whose With
// attaches structured fields to a child Logger, mirroring the pack's
// docker-compose log multiplexer (log.go).
package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is a thin façade over logrus so call sites read as ordinary
// structured logging without importing logrus directly everywhere.
type Logger struct {
	entry *logrus.Entry
}

// New builds the root Logger. level is parsed with logrus.ParseLevel;
// an invalid value falls back to Info.
func New(level string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	return &Logger{entry: logrus.NewEntry(l)}
}

// With returns a child Logger carrying additional structured fields,
// e.g. logger.With("addr", ep.String()).
func (l *Logger) With(kv ...any) *Logger {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Fatalf logs and calls os.Exit(1), matching spec.md §6's "exit code 1 on
// configuration or startup failure".
func (l *Logger) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }

// AccessLog emits one structured line per completed request/response
// exchange (spec.md §4.H, SPEC_FULL.md ambient logging section).
func (l *Logger) AccessLog(method, path string, status int, bytes int, dur time.Duration) {
	l.entry.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   status,
		"bytes":    bytes,
		"duration": dur.String(),
	}).Info("request")
}
