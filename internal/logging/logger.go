package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger provides leveled logging with redaction support
type Logger struct {
	debug   bool
	noColor bool
	out     io.Writer
}

// New creates a new logger instance writing to stderr
func New(debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     os.Stderr,
	}
}

// NewWithWriter creates a logger writing to the given sink (used by tests)
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     w,
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("\033[32m✓\033[0m", "✓", fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("\033[33m⚠\033[0m", "⚠", fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("\033[31m✗\033[0m", "✗", fmt.Sprintf(format, args...))
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit("\033[36m[DEBUG]\033[0m", "[DEBUG]", fmt.Sprintf(format, args...))
}

func (l *Logger) emit(colorPrefix, plainPrefix, msg string) {
	if !l.noColor {
		fmt.Fprintf(l.out, "%s %s\n", colorPrefix, msg)
	} else {
		fmt.Fprintf(l.out, "%s %s\n", plainPrefix, msg)
	}
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return RedactionMarker
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return RedactionMarker
}

// Redact replaces known sensitive values in a string with the marker
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, RedactionMarker)
		}
	}
	return result
}
