package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(prev)
		SetLevel(INFO)
		SetRedactPII(true)
	})
	return &buf
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestLogRedactsEmailFields(t *testing.T) {
	buf := capture(t)

	Info("preview", "email", "alice@example.com", "note", "sent to bob@example.org")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "preview", entry["msg"])
	assert.Equal(t, "al***@example.com", entry["email"])
	assert.Equal(t, "sent to bo***@example.org", entry["note"])
}

func TestLogRespectsLevel(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Debug("hidden")
	Info("hidden")
	Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"shown"`)
}

func TestLogWithoutRedaction(t *testing.T) {
	buf := capture(t)
	SetRedactPII(false)

	Error("failed", "email", "alice@example.com")
	assert.Contains(t, buf.String(), "alice@example.com")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" WARN "))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestLogClipsFreeText(t *testing.T) {
	buf := capture(t)

	Warn("rejected", "content", strings.Repeat("x", 500), "description", "vip buyers like carol@example.com")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Len(t, entry["content"], freeTextLimit+3)
	assert.Equal(t, "vip buyers like ca***@example.com", entry["description"])
}

func TestRedactEmailRejectsDoubleAt(t *testing.T) {
	assert.Equal(t, "***@***", RedactEmail("a@b@example.com"))
}
