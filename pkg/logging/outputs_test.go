package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleOutput(t *testing.T) {
	t.Run("plain format", func(t *testing.T) {
		var buf bytes.Buffer
		out := &ConsoleOutput{writer: &buf, color: false}

		err := out.Write(LogEntry{
			Time:     time.Now().UnixNano(),
			Severity: INFO,
			Message:  "hello world",
			File:     "engine.go",
			Line:     42,
		})
		require.NoError(t, err)

		line := buf.String()
		assert.Contains(t, line, "INFO")
		assert.Contains(t, line, "engine.go:42")
		assert.Contains(t, line, "hello world")
		assert.NotContains(t, line, "\033[")
	})

	t.Run("decision fields", func(t *testing.T) {
		var buf bytes.Buffer
		out := &ConsoleOutput{writer: &buf, color: false}

		err := out.Write(LogEntry{
			Time:        time.Now().UnixNano(),
			Severity:    WARN,
			Message:     "escalating",
			ActionClass: "credentials:read",
			Tier:        "escalate",
		})
		require.NoError(t, err)

		line := buf.String()
		assert.Contains(t, line, "[class=credentials:read]")
		assert.Contains(t, line, "[tier=escalate]")
	})

	t.Run("long field values truncated", func(t *testing.T) {
		var buf bytes.Buffer
		out := &ConsoleOutput{writer: &buf, color: false}

		err := out.Write(LogEntry{
			Time:     time.Now().UnixNano(),
			Severity: INFO,
			Message:  "scan",
			Fields: map[string]interface{}{
				"content": strings.Repeat("x", 300),
			},
		})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "...")
	})
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	out := NewJSONOutput(&buf)

	err := out.Write(LogEntry{
		Time:        time.Now().UnixNano(),
		Severity:    INFO,
		Message:     "decision made",
		ActionClass: "fs:write:local",
		Tier:        "act",
		Composite:   0.84,
		DecisionID:  "dec-7",
		Fields:      map[string]interface{}{"source": "user"},
	})
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["severity"])
	assert.Equal(t, "fs:write:local", rec["action_class"])
	assert.Equal(t, "act", rec["tier"])
	assert.Equal(t, "dec-7", rec["decision_id"])
	assert.InDelta(t, 0.84, rec["composite"].(float64), 0.001)
}

func TestFileOutput(t *testing.T) {
	path := t.TempDir() + "/ace.log"
	out, err := NewFileOutput(path)
	require.NoError(t, err)

	require.NoError(t, out.Write(LogEntry{
		Time:     time.Now().UnixNano(),
		Severity: INFO,
		Message:  "first",
	}))
	require.NoError(t, out.Close())

	// Appending reopens the same file without truncation.
	out, err = NewFileOutput(path)
	require.NoError(t, err)
	require.NoError(t, out.Write(LogEntry{
		Time:     time.Now().UnixNano(),
		Severity: INFO,
		Message:  "second",
	}))
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}
