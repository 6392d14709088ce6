package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(INFO)
	})
	return &buf
}

func TestInfoWritesJSONEntry(t *testing.T) {
	buf := capture(t)

	Info("run finished", "execution", "2025-10-07_06-00", "urls", 3)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "run finished", entry["msg"])
	assert.Equal(t, "2025-10-07_06-00", entry["execution"])
	assert.Equal(t, "3", entry["urls"])
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Info("ignored")
	Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "kept")
}

func TestErrorValuesAndRedaction(t *testing.T) {
	buf := capture(t)

	Error("fetch failed", "error", errors.New("boom"), "access_token", "ya29.secret")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "***", entry["access_token"])
}

func TestRedactSecret(t *testing.T) {
	assert.Equal(t, "***", RedactSecret("GOOGLE_CREDENTIALS", "{...}"))
	assert.Equal(t, "", RedactSecret("password", ""))
	assert.Equal(t, "/a/", RedactSecret("url", "/a/"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, WARN, ParseLevel("warn"))
	assert.Equal(t, INFO, ParseLevel("nope"))
}
