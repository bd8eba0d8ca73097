package parse

import "strings"

const interruptNotice = "request interrupted by user"

// Candidate is a user record that starts or continues a real user turn.
type Candidate struct {
	Line       int
	UUID       string
	ParentUUID string
	Timestamp  string
	Content    Content
}

// IsUserInput reports whether a record is genuine user input rather than a
// tool result, a slash-command wrapper or an interrupt placeholder.
func IsUserInput(r Record) bool {
	if !r.Valid || r.Type != "user" || r.IsMeta {
		return false
	}

	c := r.Content
	switch c.Kind {
	case ContentText:
		s := strings.TrimSpace(c.Text)
		if strings.HasPrefix(s, "<command-name>") || strings.HasPrefix(s, "<local-command-") {
			return false
		}
		if isInterrupt(s) {
			return false
		}
	case ContentBlocks:
		var texts []string
		for _, b := range c.Blocks {
			switch b.Kind {
			case BlockToolResult:
				return false
			case BlockText:
				texts = append(texts, b.Text)
			}
		}
		if len(texts) > 0 && allInterrupts(texts) {
			return false
		}
	}
	return true
}

// FilterCandidates keeps the records that qualify as user input.
func FilterCandidates(records []Record) []Candidate {
	var out []Candidate
	for _, r := range records {
		if !IsUserInput(r) {
			continue
		}
		out = append(out, Candidate{
			Line:       r.Line,
			UUID:       r.UUID,
			ParentUUID: r.ParentUUID,
			Timestamp:  r.Timestamp,
			Content:    r.Content,
		})
	}
	return out
}

func isInterrupt(s string) bool {
	return strings.Contains(strings.ToLower(s), interruptNotice)
}

func allInterrupts(texts []string) bool {
	for _, t := range texts {
		if !isInterrupt(t) {
			return false
		}
	}
	return true
}
