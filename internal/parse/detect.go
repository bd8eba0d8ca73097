package parse

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

type Format string

const (
	FormatUnknown Format = ""
	FormatClaude  Format = "claude"
)

const sniffLines = 30

// markerTypes are non-dialogue record types that only Claude Code writes.
var markerTypes = map[string]bool{
	"file-history-snapshot": true,
	"queue-operation":       true,
	"progress":              true,
	"system":                true,
}

// DetectFormat inspects the first 30 lines of a file. A dialogue record
// decides immediately; marker records count only if no dialogue shows up.
// Unreadable files are FormatUnknown.
func DetectFormat(path string) Format {
	lines, err := headLines(path, sniffLines)
	if err != nil {
		return FormatUnknown
	}

	sawMarker := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		v := gjson.Parse(line)
		if !v.IsObject() {
			continue
		}
		typ := v.Get("type").String()
		if (typ == "user" || typ == "assistant") && v.Get("message").IsObject() {
			return FormatClaude
		}
		if markerTypes[typ] {
			sawMarker = true
		}
	}
	if sawMarker {
		return FormatClaude
	}
	return FormatUnknown
}

// headLines returns up to n physical lines from the start of path.
func headLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	r := bufio.NewReader(f)
	for len(lines) < n {
		line, err := r.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return lines, nil
}
