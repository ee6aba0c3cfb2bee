package logging

import (
	"fmt"
	"regexp"
)

// RedactionMarker replaces a matched sensitive value in output.
const RedactionMarker = "[REDACTED]"

// Sanitizer scans free-form text for sensitive patterns and replaces the
// matched value with RedactionMarker, preserving the surrounding message.
// This is best-effort pattern matching, documented as defense-in-depth, not
// a secrecy guarantee: a secret that matches no pattern passes through.
type Sanitizer struct {
	patterns []*regexp.Regexp
}

// defaultPatterns covers the common ways a secret ends up interpolated into
// a message: key=value style assignments, bearer tokens, and well-known
// credential formats. Each pattern's last capture group is the value to
// redact; everything before it is kept.
var defaultPatterns = []*regexp.Regexp{
	// password=hunter2, token: abc, api_key = "xyz", secret:'s3cr3t'
	regexp.MustCompile(`(?i)((?:password|passwd|pwd|secret|token|api[_-]?key|access[_-]?key|private[_-]?key|key|auth|credential)\s*[=:]\s*["']?)([^\s"'&,;]+)`),
	// Authorization: Bearer eyJ...
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	// AWS access key IDs
	regexp.MustCompile(`()\b(AKIA[0-9A-Z]{16})\b`),
	// Unquoted JWTs appearing on their own
	regexp.MustCompile(`()\b(eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{4,})\b`),
}

// NewSanitizer creates a sanitizer with the built-in pattern set plus any
// extra patterns. Extra patterns must place the value to redact in their
// final capture group.
func NewSanitizer(extra ...*regexp.Regexp) *Sanitizer {
	patterns := make([]*regexp.Regexp, 0, len(defaultPatterns)+len(extra))
	patterns = append(patterns, defaultPatterns...)
	patterns = append(patterns, extra...)
	return &Sanitizer{patterns: patterns}
}

// Sanitize returns msg with every pattern match's value replaced by the
// redaction marker. A message with no sensitive pattern is returned
// unchanged.
func (s *Sanitizer) Sanitize(msg string) string {
	for _, re := range s.patterns {
		msg = re.ReplaceAllString(msg, "${1}"+RedactionMarker)
	}
	return msg
}

// SanitizeError wraps err so its message passes through the sanitizer. The
// original error remains reachable via errors.Unwrap for errors.Is/As
// checks; only the rendered message is rewritten.
func (s *Sanitizer) SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	return &sanitizedError{msg: s.Sanitize(err.Error()), cause: err}
}

type sanitizedError struct {
	msg   string
	cause error
}

func (e *sanitizedError) Error() string { return e.msg }

func (e *sanitizedError) Unwrap() error { return e.cause }

// SecureLogger wraps a Logger so every message passes the sanitizer before
// reaching the sink. Use it wherever log calls may interpolate values that
// came from provider responses or errors.
type SecureLogger struct {
	logger    *Logger
	sanitizer *Sanitizer
}

// NewSecureLogger wraps logger with the given sanitizer. A nil sanitizer
// gets the default pattern set.
func NewSecureLogger(logger *Logger, sanitizer *Sanitizer) *SecureLogger {
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	return &SecureLogger{logger: logger, sanitizer: sanitizer}
}

// Info logs an informational message after sanitizing it
func (l *SecureLogger) Info(format string, args ...interface{}) {
	l.logger.Info("%s", l.sanitizer.Sanitize(fmt.Sprintf(format, args...)))
}

// Warn logs a warning message after sanitizing it
func (l *SecureLogger) Warn(format string, args ...interface{}) {
	l.logger.Warn("%s", l.sanitizer.Sanitize(fmt.Sprintf(format, args...)))
}

// Error logs an error message after sanitizing it
func (l *SecureLogger) Error(format string, args ...interface{}) {
	l.logger.Error("%s", l.sanitizer.Sanitize(fmt.Sprintf(format, args...)))
}

// Debug logs a debug message after sanitizing it
func (l *SecureLogger) Debug(format string, args ...interface{}) {
	l.logger.Debug("%s", l.sanitizer.Sanitize(fmt.Sprintf(format, args...)))
}

// WrapError sanitizes an error's rendered message, keeping the chain intact
func (l *SecureLogger) WrapError(err error) error {
	return l.sanitizer.SanitizeError(err)
}

// Sanitize exposes the underlying sanitizer for callers that format their
// own output (exception monitors, panic handlers).
func (l *SecureLogger) Sanitize(msg string) string {
	return l.sanitizer.Sanitize(msg)
}
