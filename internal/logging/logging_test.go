package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("accounts", "v1.2.3", "json", &buf)

	logger.Info("user registered",
		"user_id", "u1",
		"password", "hunter2",
		"Token", "eyJhbGciOi",
		"password_hash", "$argon2id$...",
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "user registered", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "accounts", entry["service"])
	assert.Equal(t, "v1.2.3", entry["version"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, RedactedValue, entry["password"])
	assert.Equal(t, RedactedValue, entry["Token"])
	assert.Equal(t, RedactedValue, entry["password_hash"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestSetup_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("accounts", "dev", "TEXT", &buf)

	logger.Debug("hidden")
	logger.Warn("rehash failed", "secret_key", "k")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "secret_key="+RedactedValue)
	assert.Contains(t, out, "service=accounts")
}
