// Package xlog provides the structured logging used across the source
// layers, mirroring the Debugf/Errorf call shape the wider ecosystem
// uses for this kind of layered I/O code.
package xlog

import (
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLevel adjusts the verbosity of package-wide logging.
func SetLevel(level logrus.Level) {
	log.SetLevel(level)
}

// SetOutput lets callers redirect logs (tests quiet them with io.Discard).
func SetOutput(w interface {
	Write([]byte) (int, error)
}) {
	log.SetOutput(w)
}

// Debugf logs diagnostic detail about a layer's internal bookkeeping.
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Errorf logs a failure a layer is about to return to its caller.
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// WithField starts a structured log entry scoped to one field, e.g. the
// source's name or a stream ID.
func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}
