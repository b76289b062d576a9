package logging_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bloombuilt/qb/internal/logging"
)

// TestSecretRedactionAtInfoLevel verifies secrets are redacted in Info-level logs
func TestSecretRedactionAtInfoLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false, true)

	secretValue := "super-secret-password-12345"
	logger.Info("Resolved password: %s", logging.Secret(secretValue))

	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.NotContains(t, buf.String(), secretValue)
	assert.Contains(t, buf.String(), "Resolved password")
}

// TestRegisteredSecretsAreScrubbed verifies values registered with Redact never reach output
func TestRegisteredSecretsAreScrubbed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, true, true)
	logger.Redact("field-pass-9876")

	logger.Debug("ansible-vault said: bad password field-pass-9876")
	logger.Warn("retry with field-pass-9876?")

	assert.NotContains(t, buf.String(), "field-pass-9876")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("[REDACTED]")))
}

func TestNoColorOutputHasNoEscapes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logging.NewWithWriter(&buf, false, true).Error("plain")

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestColorOutputHasEscapes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logging.NewWithWriter(&buf, false, false).Error("red")

	assert.Contains(t, buf.String(), "\x1b[31m")
}
