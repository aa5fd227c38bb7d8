// Package logging provides a small leveled logger seam used throughout the
// pipeline, so components depend on an interface rather than calling the
// standard log package directly.
package logging

import "log"

// Logger is a minimal leveled logging interface.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// defaultLogger implements Logger on top of the standard log package.
type defaultLogger struct {
	debug bool
}

// New creates a default logger. When debug is false, Debug calls are dropped.
func New(debug bool) Logger {
	return &defaultLogger{debug: debug}
}

func (l *defaultLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		log.Printf("[DEBUG] "+msg, args...)
	}
}

func (l *defaultLogger) Info(msg string, args ...interface{}) {
	log.Printf("[INFO] "+msg, args...)
}

func (l *defaultLogger) Warn(msg string, args ...interface{}) {
	log.Printf("[WARN] "+msg, args...)
}

func (l *defaultLogger) Error(msg string, args ...interface{}) {
	log.Printf("[ERROR] "+msg, args...)
}
