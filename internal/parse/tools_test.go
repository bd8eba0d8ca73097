package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func toolUseBlock(name, input string) Block {
	return Block{Kind: BlockToolUse, Name: name, Input: gjson.Parse(input)}
}

func TestDescribeTool(t *testing.T) {
	longCmd := strings.Repeat("a", 250)

	tests := []struct {
		name  string
		block Block
		want  ToolUse
	}{
		{
			name:  "bash truncates command",
			block: toolUseBlock("Bash", `{"command":"`+longCmd+`","description":"list files"}`),
			want:  ToolUse{Name: "Bash", Command: strings.Repeat("a", 200), Description: "list files"},
		},
		{
			name:  "read keeps path",
			block: toolUseBlock("Read", `{"file_path":"/repo/main.go","offset":10}`),
			want:  ToolUse{Name: "Read", FilePath: "/repo/main.go"},
		},
		{
			name:  "multiedit",
			block: toolUseBlock("MultiEdit", `{"file_path":"/repo/x.go","edits":[]}`),
			want:  ToolUse{Name: "MultiEdit", FilePath: "/repo/x.go"},
		},
		{
			name:  "glob",
			block: toolUseBlock("Glob", `{"pattern":"**/*.go","path":"/repo"}`),
			want:  ToolUse{Name: "Glob", Pattern: "**/*.go", Path: "/repo"},
		},
		{
			name:  "grep without path",
			block: toolUseBlock("Grep", `{"pattern":"func main"}`),
			want:  ToolUse{Name: "Grep", Pattern: "func main"},
		},
		{
			name:  "task",
			block: toolUseBlock("Task", `{"description":"explore","prompt":"long prompt","subagent_type":"Explore"}`),
			want:  ToolUse{Name: "Task", Description: "explore", SubagentType: "Explore"},
		},
		{
			name:  "web fetch",
			block: toolUseBlock("WebFetch", `{"url":"https://go.dev","prompt":"read"}`),
			want:  ToolUse{Name: "WebFetch", URL: "https://go.dev"},
		},
		{
			name:  "web search",
			block: toolUseBlock("WebSearch", `{"query":"golang generics"}`),
			want:  ToolUse{Name: "WebSearch", Query: "golang generics"},
		},
		{
			name:  "unknown tool",
			block: toolUseBlock("TodoWrite", `{"todos":[]}`),
			want:  ToolUse{Name: "TodoWrite"},
		},
		{
			name:  "case sensitive name",
			block: toolUseBlock("bash", `{"command":"ls"}`),
			want:  ToolUse{Name: "bash"},
		},
		{
			name:  "non-object input",
			block: toolUseBlock("Bash", `"ls"`),
			want:  ToolUse{Name: "Bash"},
		},
		{
			name:  "null and numeric fields",
			block: toolUseBlock("Bash", `{"command":null,"description":42}`),
			want:  ToolUse{Name: "Bash", Description: "42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DescribeTool(tt.block)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribeTool_Dropped(t *testing.T) {
	_, ok := DescribeTool(toolUseBlock("", `{"command":"ls"}`))
	assert.False(t, ok)

	_, ok = DescribeTool(Block{Kind: BlockText, Text: "hello"})
	assert.False(t, ok)
}

func TestIsEditTool(t *testing.T) {
	assert.True(t, IsEditTool("Edit"))
	assert.True(t, IsEditTool("MultiEdit"))
	assert.True(t, IsEditTool("Write"))
	assert.False(t, IsEditTool("Read"))
	assert.False(t, IsEditTool("NotebookEdit"))
}

func TestToolUseString(t *testing.T) {
	assert.Equal(t, "Bash: ls -la", ToolUse{Name: "Bash", Command: "ls -la", Description: "list"}.String())
	assert.Equal(t, "Edit: /a.go", ToolUse{Name: "Edit", FilePath: "/a.go"}.String())
	assert.Equal(t, "Grep: TODO", ToolUse{Name: "Grep", Pattern: "TODO", Path: "src"}.String())
	assert.Equal(t, "WebSearch: go generics", ToolUse{Name: "WebSearch", Query: "go generics"}.String())
	assert.Equal(t, "TodoWrite", ToolUse{Name: "TodoWrite"}.String())
}
