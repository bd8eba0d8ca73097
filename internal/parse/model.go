package parse

import "time"

const (
	DefaultMergeWindow    = 120 * time.Second
	DefaultMaxUserMessage = 2000
)

// Options controls a single ParseSession call. The zero value uses defaults.
type Options struct {
	SinceTurn      int           // only turns numbered above this are returned
	MergeWindow    time.Duration // retry coalescing window
	MaxUserMessage int           // rune limit for ParsedTurn.UserMessage
}

func (o Options) withDefaults() Options {
	if o.MergeWindow <= 0 {
		o.MergeWindow = DefaultMergeWindow
	}
	if o.MaxUserMessage <= 0 {
		o.MaxUserMessage = DefaultMaxUserMessage
	}
	return o
}

// ToolUse is the compact descriptor of one tool invocation.
type ToolUse struct {
	Name         string `json:"name"`
	Command      string `json:"command,omitempty"`
	Description  string `json:"description,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	Path         string `json:"path,omitempty"`
	SubagentType string `json:"subagent_type,omitempty"`
	URL          string `json:"url,omitempty"`
	Query        string `json:"query,omitempty"`
}

// ParsedTurn is one logical user turn and the assistant work that followed it.
type ParsedTurn struct {
	TurnNumber       int
	UserMessage      string
	AssistantSummary string
	AssistantText    string
	ContentHash      string
	Timestamp        string
	RawContent       string
	StartLine        int // 1-based, inclusive
	EndLine          int // line before the next turn, or the file's line count
	ToolUses         []ToolUse
	FilesModified    []string
}
