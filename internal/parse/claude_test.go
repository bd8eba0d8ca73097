package parse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func ts(offset time.Duration) string {
	return baseTime.Add(offset).Format(time.RFC3339Nano)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func userLine(t *testing.T, uuid, parent, when string, content any) string {
	rec := map[string]any{
		"type":      "user",
		"uuid":      uuid,
		"timestamp": when,
		"message":   map[string]any{"role": "user", "content": content},
	}
	if parent != "" {
		rec["parentUuid"] = parent
	}
	return mustJSON(t, rec)
}

func assistantLine(t *testing.T, uuid, parent, when string, blocks ...map[string]any) string {
	return mustJSON(t, map[string]any{
		"type":       "assistant",
		"uuid":       uuid,
		"parentUuid": parent,
		"timestamp":  when,
		"message":    map[string]any{"role": "assistant", "content": blocks},
	})
}

func textBlock(s string) map[string]any {
	return map[string]any{"type": "text", "text": s}
}

func toolBlock(name string, input map[string]any) map[string]any {
	return map[string]any{"type": "tool_use", "id": "toolu_" + name, "name": name, "input": input}
}

func writeSession(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestParseSession_IndependentTurns(t *testing.T) {
	path := writeSession(t,
		userLine(t, "u1", "", ts(0), "first question"),
		assistantLine(t, "a1", "u1", ts(5*time.Second), textBlock("first answer")),
		userLine(t, "u2", "a1", ts(5*time.Minute), "second question"),
		assistantLine(t, "a2", "u2", ts(5*time.Minute+5*time.Second), textBlock("second answer")),
		userLine(t, "u3", "a2", ts(10*time.Minute), "third question"),
		assistantLine(t, "a3", "u3", ts(10*time.Minute+5*time.Second), textBlock("third answer")),
	)

	turns, err := ParseSession(path, Options{})
	require.NoError(t, err)
	require.Len(t, turns, 3)

	for i, turn := range turns {
		assert.Equal(t, i+1, turn.TurnNumber)
		assert.Equal(t, 2*i+1, turn.StartLine)
		assert.Equal(t, 2*i+2, turn.EndLine)
	}
	assert.Equal(t, "first question", turns[0].UserMessage)
	assert.Equal(t, "second answer", turns[1].AssistantText)
	assert.Equal(t, turns[1].AssistantText, turns[1].AssistantSummary)
	assert.Equal(t, ts(10*time.Minute), turns[2].Timestamp)
}

func TestParseSession_RetryCollapse(t *testing.T) {
	tests := []struct {
		name      string
		gap       time.Duration
		wantTurns int
	}{
		{name: "within window", gap: 60 * time.Second, wantTurns: 1},
		{name: "outside window", gap: 200 * time.Second, wantTurns: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSession(t,
				userLine(t, "u1", "", ts(0), "fix the login bug"),
				userLine(t, "u2", "", ts(tt.gap), "fix the login bug"),
				assistantLine(t, "a1", "u2", ts(tt.gap+time.Second), textBlock("done")),
			)

			turns, err := ParseSession(path, Options{})
			require.NoError(t, err)
			require.Len(t, turns, tt.wantTurns)
			assert.Equal(t, 1, turns[0].StartLine)
			assert.Equal(t, 3, turns[len(turns)-1].EndLine)
		})
	}
}

func TestMergeRetries_CombinesLines(t *testing.T) {
	cands := []Candidate{
		{Line: 4, UUID: "b", Timestamp: ts(60 * time.Second), Content: Content{Kind: ContentText, Text: "same"}},
		{Line: 1, UUID: "a", Timestamp: ts(0), Content: Content{Kind: ContentText, Text: "same"}},
		{Line: 9, UUID: "c", Timestamp: ts(90 * time.Second), Content: Content{Kind: ContentText, Text: "other"}},
	}

	groups := mergeRetries(groupByRoot(cands), DefaultMergeWindow)
	require.Len(t, groups, 2)
	assert.Equal(t, []int{1, 4}, groups[0].Lines)
	assert.Len(t, groups[0].Messages, 2)
	assert.Equal(t, []int{9}, groups[1].Lines)
}

func TestMergeRetries_Empty(t *testing.T) {
	assert.Empty(t, mergeRetries(nil, DefaultMergeWindow))

	lone := []*turnGroup{{Timestamp: ts(0), Lines: []int{3}}}
	assert.Equal(t, lone, mergeRetries(lone, DefaultMergeWindow))
}

func TestParseSession_MergeWindowOption(t *testing.T) {
	path := writeSession(t,
		userLine(t, "u1", "", ts(0), "again"),
		userLine(t, "u2", "", ts(60*time.Second), "again"),
	)

	turns, err := ParseSession(path, Options{MergeWindow: 30 * time.Second})
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestParseSession_NoiseExcluded(t *testing.T) {
	path := writeSession(t,
		userLine(t, "u1", "", ts(0), "real request"),
		assistantLine(t, "a1", "u1", ts(time.Second), toolBlock("Bash", map[string]any{"command": "ls"})),
		userLine(t, "u2", "a1", ts(2*time.Second), []map[string]any{
			{"type": "tool_result", "tool_use_id": "toolu_Bash", "content": "file.txt"},
		}),
		userLine(t, "u3", "u2", ts(5*time.Minute), "[Request interrupted by user]"),
		userLine(t, "u4", "u3", ts(6*time.Minute), []map[string]any{textBlock("[Request interrupted by user for tool use]")}),
		userLine(t, "u5", "u4", ts(7*time.Minute), "<command-name>/clear</command-name>"),
		mustJSON(t, map[string]any{
			"type": "user", "uuid": "u6", "isMeta": true, "timestamp": ts(8 * time.Minute),
			"message": map[string]any{"content": "caveat"},
		}),
	)

	turns, err := ParseSession(path, Options{})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "real request", turns[0].UserMessage)
	assert.Equal(t, 7, turns[0].EndLine)
	require.Len(t, turns[0].ToolUses, 1)
	assert.Equal(t, ToolUse{Name: "Bash", Command: "ls"}, turns[0].ToolUses[0])
}

func TestParseSession_SinceTurn(t *testing.T) {
	path := writeSession(t,
		userLine(t, "u1", "", ts(0), "one"),
		assistantLine(t, "a1", "u1", ts(time.Second), textBlock("reply one")),
		userLine(t, "u2", "a1", ts(10*time.Minute), "two"),
		assistantLine(t, "a2", "u2", ts(10*time.Minute+time.Second), textBlock("reply two")),
	)

	full, err := ParseSession(path, Options{})
	require.NoError(t, err)
	require.Len(t, full, 2)

	tail, err := ParseSession(path, Options{SinceTurn: 1})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, 2, tail[0].TurnNumber)
	assert.Equal(t, full[1], tail[0])

	none, err := ParseSession(path, Options{SinceTurn: 2})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseSession_FilesModified(t *testing.T) {
	path := writeSession(t,
		userLine(t, "u1", "", ts(0), "refactor"),
		assistantLine(t, "a1", "u1", ts(time.Second),
			textBlock("  editing  "),
			toolBlock("Edit", map[string]any{"file_path": "/src/b.go", "old_string": "x", "new_string": "y"}),
			toolBlock("Write", map[string]any{"file_path": "/src/a.go", "content": "package a"}),
		),
		assistantLine(t, "a2", "a1", ts(2*time.Second),
			toolBlock("Edit", map[string]any{"file_path": "/src/b.go"}),
			toolBlock("Read", map[string]any{"file_path": "/src/c.go"}),
			textBlock("   "),
			textBlock("finished"),
		),
	)

	turns, err := ParseSession(path, Options{})
	require.NoError(t, err)
	require.Len(t, turns, 1)

	turn := turns[0]
	assert.Equal(t, []string{"/src/a.go", "/src/b.go"}, turn.FilesModified)
	assert.Equal(t, "editing\n\nfinished", turn.AssistantText)
	names := make([]string, 0, len(turn.ToolUses))
	for _, tu := range turn.ToolUses {
		names = append(names, tu.Name)
	}
	assert.Equal(t, []string{"Edit", "Write", "Edit", "Read"}, names)
}

func TestParseSession_Deterministic(t *testing.T) {
	path := writeSession(t,
		userLine(t, "u1", "", ts(0), "hello"),
		"this line is not json",
		"",
		assistantLine(t, "a1", "u1", ts(time.Second), textBlock("hi")),
		userLine(t, "u2", "a1", ts(5*time.Minute), "bye"),
	)

	first, err := ParseSession(path, Options{})
	require.NoError(t, err)
	second, err := ParseSession(path, Options{})
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].ContentHash, second[i].ContentHash)
		assert.Len(t, first[i].ContentHash, 32)
	}
	assert.NotEqual(t, first[0].ContentHash, first[1].ContentHash)

	// malformed and blank lines keep their place in the raw span
	assert.Equal(t, 4, first[0].EndLine)
	assert.Contains(t, first[0].RawContent, "this line is not json\n\n")
	assert.Equal(t, "hi", first[0].AssistantText)
}

func TestParseSession_ParentChainGroups(t *testing.T) {
	path := writeSession(t,
		userLine(t, "u1", "", ts(0), "start here"),
		userLine(t, "u2", "u1", ts(10*time.Minute), "and also this"),
		assistantLine(t, "a1", "u2", ts(11*time.Minute), textBlock("ok")),
	)

	turns, err := ParseSession(path, Options{})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, ts(0), turns[0].Timestamp)
	assert.Equal(t, "start here", turns[0].UserMessage)
}

func TestParseSession_CycleDropped(t *testing.T) {
	path := writeSession(t,
		userLine(t, "u1", "u2", ts(0), "loop one"),
		userLine(t, "u2", "u1", ts(time.Minute), "loop two"),
		userLine(t, "u3", "", ts(5*time.Minute), "fine"),
	)

	turns, err := ParseSession(path, Options{})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "fine", turns[0].UserMessage)
	assert.Equal(t, 3, turns[0].StartLine)
}

func TestParseSession_MissingTimestampDropped(t *testing.T) {
	path := writeSession(t, userLine(t, "u1", "", "", "no time"))

	turns, err := ParseSession(path, Options{})
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestParseSession_UserMessageCleanedAndTruncated(t *testing.T) {
	long := strings.Repeat("é", 50)
	path := writeSession(t,
		userLine(t, "u1", "", ts(0), "<system-reminder>\nignore\n</system-reminder>  <b>hi</b>\n\n"+long),
	)

	turns, err := ParseSession(path, Options{MaxUserMessage: 10})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hi "+strings.Repeat("é", 7), turns[0].UserMessage)
}

func TestParseSession_EmptyAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	turns, err := ParseSession(path, Options{})
	require.NoError(t, err)
	assert.Empty(t, turns)

	_, err = ParseSession(filepath.Join(t.TempDir(), "missing.jsonl"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
