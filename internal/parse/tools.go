package parse

import "github.com/tidwall/gjson"

// editTools are the tools whose file_path counts as a modification.
var editTools = map[string]bool{
	"Edit":      true,
	"MultiEdit": true,
	"Write":     true,
}

// DescribeTool reduces a tool_use block to a compact descriptor. Blocks
// without a tool name yield false.
func DescribeTool(b Block) (ToolUse, bool) {
	if b.Kind != BlockToolUse || b.Name == "" {
		return ToolUse{}, false
	}
	tu := ToolUse{Name: b.Name}
	in := b.Input
	if !in.IsObject() {
		return tu, true
	}

	switch b.Name {
	case "Bash":
		tu.Command = param(in, "command", 200)
		tu.Description = param(in, "description", 100)
	case "Read", "Write", "Edit", "MultiEdit":
		tu.FilePath = param(in, "file_path", 0)
	case "Glob":
		tu.Pattern = param(in, "pattern", 200)
		tu.Path = param(in, "path", 0)
	case "Grep":
		tu.Pattern = param(in, "pattern", 100)
		tu.Path = param(in, "path", 0)
	case "Task":
		tu.Description = param(in, "description", 100)
		tu.SubagentType = param(in, "subagent_type", 0)
	case "WebFetch":
		tu.URL = param(in, "url", 200)
	case "WebSearch":
		tu.Query = param(in, "query", 100)
	}
	return tu, true
}

// param renders an input field as text, cut to limit runes (0 = no limit).
// Missing and null fields come back empty.
func param(in gjson.Result, key string, limit int) string {
	v := in.Get(key)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return truncateRunes(v.String(), limit)
}

// IsEditTool reports whether a tool writes to its file_path.
func IsEditTool(name string) bool {
	return editTools[name]
}

// String renders the descriptor as "Name: argument" using its most
// informative parameter.
func (t ToolUse) String() string {
	var arg string
	switch {
	case t.Command != "":
		arg = t.Command
	case t.FilePath != "":
		arg = t.FilePath
	case t.Pattern != "":
		arg = t.Pattern
	case t.Description != "":
		arg = t.Description
	case t.URL != "":
		arg = t.URL
	case t.Query != "":
		arg = t.Query
	}
	if arg == "" {
		return t.Name
	}
	return t.Name + ": " + arg
}
