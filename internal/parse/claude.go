package parse

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ParseSession splits a Claude Code transcript into logical turns. Only turns
// numbered above opts.SinceTurn are returned, but numbering always covers the
// whole file.
func ParseSession(path string, opts Options) ([]ParsedTurn, error) {
	opts = opts.withDefaults()

	records, err := readRecords(path)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cands := FilterCandidates(records)
	if len(cands) == 0 {
		return nil, nil
	}

	groups := mergeRetries(groupByRoot(cands), opts.MergeWindow)
	total := len(records)

	var turns []ParsedTurn
	for idx, g := range groups {
		num := idx + 1
		if num <= opts.SinceTurn {
			continue
		}

		start := g.Lines[0]
		end := total
		if idx+1 < len(groups) {
			end = groups[idx+1].Lines[0] - 1
		}

		user := CleanUserMessage(ExtractText(g.Messages[0].Content))
		text, tools, files := assistantContent(records, start, end)
		raw := rawSpan(records, start, end)
		sum := md5.Sum([]byte(raw))

		turns = append(turns, ParsedTurn{
			TurnNumber:       num,
			UserMessage:      truncateRunes(user, opts.MaxUserMessage),
			AssistantSummary: text,
			AssistantText:    text,
			ContentHash:      hex.EncodeToString(sum[:]),
			Timestamp:        g.Timestamp,
			RawContent:       raw,
			StartLine:        start,
			EndLine:          end,
			ToolUses:         tools,
			FilesModified:    files,
		})
	}
	return turns, nil
}

// assistantContent collects text, tool descriptors and edited files from the
// assistant records in lines [start, end].
func assistantContent(records []Record, start, end int) (string, []ToolUse, []string) {
	var texts []string
	var tools []ToolUse
	files := map[string]bool{}

	for _, r := range records {
		if r.Line < start || r.Line > end {
			continue
		}
		if !r.Valid || r.Type != "assistant" || r.Content.Kind != ContentBlocks {
			continue
		}
		for _, b := range r.Content.Blocks {
			switch b.Kind {
			case BlockText:
				if t := strings.TrimSpace(b.Text); t != "" {
					texts = append(texts, t)
				}
			case BlockToolUse:
				tu, ok := DescribeTool(b)
				if !ok {
					continue
				}
				tools = append(tools, tu)
				if IsEditTool(tu.Name) && tu.FilePath != "" {
					files[tu.FilePath] = true
				}
			}
		}
	}

	var modified []string
	for f := range files {
		modified = append(modified, f)
	}
	sort.Strings(modified)
	return strings.Join(texts, "\n\n"), tools, modified
}

// rawSpan rebuilds the verbatim text of lines [start, end].
func rawSpan(records []Record, start, end int) string {
	if end > len(records) {
		end = len(records)
	}
	if start < 1 || start > end {
		return ""
	}
	lines := make([]string, 0, end-start+1)
	for _, r := range records[start-1 : end] {
		lines = append(lines, r.Raw)
	}
	return strings.Join(lines, "\n")
}
