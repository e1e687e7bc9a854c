// Package logger provides the leveled logging wrapper used across chartvault.
package logger

import (
	"log"
	"os"
)

// Logger wraps the standard logger with leveled convenience methods.
type Logger struct {
	*log.Logger
	debug bool
}

func New() *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
		debug:  os.Getenv("LOG_LEVEL") == "debug",
	}
}

func NewLogger(prefix string) *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "["+prefix+"] ", log.LstdFlags),
		debug:  os.Getenv("LOG_LEVEL") == "debug",
	}
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.Printf("[INFO] %s %v", msg, fields)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.Printf("[WARN] %s %v", msg, fields)
}

func (l *Logger) Error(msg string, err error) {
	l.Printf("[ERROR] %s: %v", msg, err)
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	if !l.debug {
		return
	}
	l.Printf("[DEBUG] %s %v", msg, fields)
}
