package parse

import (
	"regexp"
	"strings"
	"time"
)

var (
	reminderRe = regexp.MustCompile(`(?s)<system-reminder>.*?</system-reminder>`)
	xmlTagRe   = regexp.MustCompile(`<[^>]+>`)
)

// ExtractText returns the plain text of a message content value: the string
// itself, or the text blocks joined by newlines.
func ExtractText(c Content) string {
	switch c.Kind {
	case ContentText:
		return c.Text
	case ContentBlocks:
		var parts []string
		for _, b := range c.Blocks {
			if b.Kind == BlockText {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// CleanUserMessage drops reminder blocks and XML-like tags, then collapses
// whitespace.
func CleanUserMessage(text string) string {
	text = reminderRe.ReplaceAllString(text, "")
	text = xmlTagRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// ISO8601 without timezone
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t
	}
	return time.Time{}
}
