package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	Info("disc refreshed", "sectors", 1024)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "disc refreshed", entry["msg"])
	assert.Equal(t, float64(1024), entry["sectors"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	Debug("dropped")
	Info("dropped too")
	Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	Info("worker started", "mode", "2352")

	out := buf.String()
	assert.Contains(t, out, "worker started")
	assert.Contains(t, out, "mode=2352")
	assert.Contains(t, out, "INFO")
}

func TestInvalidSettingsIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	SetLevel("LOUD")
	SetFormat("xml")

	Info("still works")
	assert.Contains(t, buf.String(), "still works")
}
