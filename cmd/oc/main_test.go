package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/opencontext/internal/index"
	"github.com/Zuo-Peng/opencontext/internal/search"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"init", "sync", "import", "discover", "status", "doctor", "sessions",
		"show", "projects", "search", "list", "preview", "open", "process", "brief", "events", "event", "watch"} {
		assert.Contains(t, names, want)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	writeTSV(&buf, []search.Result{{
		SessionID:  "sess-1",
		TurnNumber: 3,
		Timestamp:  "2025-03-01T10:04:00Z",
		Workspace:  "/w/app",
		Title:      "Fix\tparser",
		Snippet:    "the >>>parser<<< broke\nagain",
	}}, false)
	assert.Equal(t, "sess-1\t3\t2025-03-01 10:04\t/w/app\tFix parser\tthe parser broke again\n", buf.String())
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "none", formatCounts(nil))
	assert.Equal(t, "done=2, queued=1", formatCounts(map[string]int{"queued": 1, "done": 2}))
}

func TestSessionLine(t *testing.T) {
	line := sessionLine(index.Session{
		ID: "0123456789abcdef", LastActivityAt: "2025-03-01 10:00:00", TotalTurns: 4, Workspace: "/w/app",
	})
	assert.True(t, strings.HasPrefix(line, "01234567  2025-03-01 10:00    4 turns  (untitled)  /w/app"), line)
}
