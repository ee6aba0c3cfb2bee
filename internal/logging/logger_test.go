package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretAlwaysRedacted(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "secret is redacted", input: "my-secret-password"},
		{name: "empty secret is still redacted", input: ""},
		{name: "complex secret is redacted", input: "password123!@#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, RedactionMarker, Secret(tt.input).String())
			assert.Equal(t, RedactionMarker, Secret(tt.input).GoString())
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("resolved %d credentials", 3)
	logger.Warn("provider %s degraded", "file")
	logger.Error("write failed")

	out := buf.String()
	assert.Contains(t, out, "✓ resolved 3 credentials")
	assert.Contains(t, out, "⚠ provider file degraded")
	assert.Contains(t, out, "✗ write failed")
}

func TestLoggerDebugGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	debugLogger := NewWithWriter(&buf, true, true)
	debugLogger.Debug("visible")
	assert.Contains(t, buf.String(), "[DEBUG] visible")
}

func TestRedact(t *testing.T) {
	out := Redact("connecting with password hunter22 to db", []string{"hunter22"})
	assert.Equal(t, "connecting with password "+RedactionMarker+" to db", out)

	// Trivially short values are left alone; redacting them would mangle
	// ordinary words.
	out = Redact("port is 543", []string{"543"})
	assert.Equal(t, "port is 543", out)
}
