// Package render draws a session's turns as coloured terminal text.
package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/opencontext/internal/index"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorAssist  = "\033[1;32m" // bold green
	colorTool    = "\033[2;35m" // dim magenta
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

// Options controls RenderSession.
type Options struct {
	HitTurn int    // turn number to centre on (0 = start of session)
	Context int    // turns before/after the hit to show (<0 = all)
	Width   int    // wrap width (0 = no wrap)
	Query   string // search query for keyword highlighting
	Plain   bool   // no ANSI colours
}

var ftsOperators = map[string]bool{"AND": true, "OR": true, "NOT": true, "NEAR": true}

// keywordPattern turns an FTS query into a case-insensitive alternation of
// its terms. Operators, quotes, prefix stars and column filters are dropped.
func keywordPattern(query string) *regexp.Regexp {
	var terms []string
	for _, f := range strings.Fields(query) {
		if ftsOperators[strings.ToUpper(f)] {
			continue
		}
		if i := strings.IndexByte(f, ':'); i >= 0 {
			f = f[i+1:]
		}
		f = strings.Trim(f, `"*()^`)
		if f != "" {
			terms = append(terms, regexp.QuoteMeta(f))
		}
	}
	if len(terms) == 0 {
		return nil
	}
	// longest first so "parse" does not shadow "parser"
	sort.Slice(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	return regexp.MustCompile("(?i)" + strings.Join(terms, "|"))
}

// highlightKeywords wraps every query term found in text in bold red.
func highlightKeywords(text, query string) string {
	re := keywordPattern(query)
	if re == nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return colorBoldRed + m + colorReset
	})
}

// wrapLine splits line into pieces of at most maxWidth visible columns.
// Escape sequences take no room and stay with the piece they follow.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var (
		out []string
		cur strings.Builder
		w   int
	)
	for i := 0; i < len(line); {
		if line[i] == '\x1b' {
			if loc := ansiSeq.FindStringIndex(line[i:]); loc != nil && loc[0] == 0 {
				cur.WriteString(line[i : i+loc[1]])
				i += loc[1]
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)
		if w+rw > maxWidth {
			out = append(out, cur.String())
			cur.Reset()
			w = 0
		}
		cur.WriteRune(r)
		w += rw
		i += size
	}
	if cur.Len() > 0 || len(out) == 0 {
		out = append(out, cur.String())
	}
	return out
}

// lineWriter accumulates output lines, wrapping them to width and
// optionally dropping colour.
type lineWriter struct {
	b     strings.Builder
	n     int
	width int
	plain bool
}

func (w *lineWriter) line(s string) {
	if w.plain {
		s = stripANSI(s)
	}
	for _, piece := range wrapLine(s, w.width) {
		w.b.WriteString(piece)
		w.b.WriteByte('\n')
		w.n++
	}
}

func (w *lineWriter) linef(format string, args ...any) {
	w.line(fmt.Sprintf(format, args...))
}

// block writes multi-line text, each line indented.
func (w *lineWriter) block(text, indent string) {
	for _, l := range strings.Split(text, "\n") {
		w.line(indent + l)
	}
}

// RenderSession renders the turns of a session around opts.HitTurn and
// returns the content and the 0-based line of the hit turn header (-1 if
// there is no hit).
func RenderSession(db *index.DB, sessionID string, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 5
	}

	session, err := db.GetSessionByPrefix(sessionID)
	if err != nil {
		return "", -1, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	turns, err := db.GetTurns(session.ID)
	if err != nil {
		return "", -1, fmt.Errorf("get turns: %w", err)
	}
	if len(turns) == 0 {
		return "(empty session)", -1, nil
	}

	hitIdx := -1
	for i, t := range turns {
		if t.TurnNumber == opts.HitTurn {
			hitIdx = i
			break
		}
	}
	start, end := window(len(turns), hitIdx, opts.Context)

	w := &lineWriter{width: opts.Width, plain: opts.Plain}
	hitLine := -1

	title := session.Title
	if title == "" {
		title = "(untitled)"
	}
	w.linef("%s--- %s %s [%s] ---%s", colorDim, session.ID, title, session.Workspace, colorReset)
	if session.Summary != "" {
		w.line(colorDim + session.Summary + colorReset)
	}
	if start > 0 {
		w.linef("%s... (%d turns before) ...%s", colorDim, start, colorReset)
	}

	for i := start; i < end; i++ {
		t := turns[i]
		if i > start {
			w.line(colorDim + strings.Repeat("-", 50) + colorReset)
		}

		header := fmt.Sprintf("TURN %d > %s  %s", t.TurnNumber, t.Timestamp, t.Title)
		if i == hitIdx {
			hitLine = w.n
			w.line(colorHit + ">> " + header + " <<" + colorReset)
		} else {
			w.line(colorDim + header + colorReset)
		}
		if t.Description != "" {
			w.block(colorDim+t.Description+colorReset, "  ")
		}

		w.line(colorUser + "USER >" + colorReset)
		w.block(highlightKeywords(t.UserMessage, opts.Query), "  ")
		if t.AssistantSummary != "" {
			w.line(colorAssist + "ASST >" + colorReset)
			w.block(highlightKeywords(t.AssistantSummary, opts.Query), "  ")
		}

		for _, tu := range t.ToolUses {
			w.line("  " + colorTool + "- " + tu.String() + colorReset)
		}
		if len(t.FilesModified) > 0 {
			w.linef("  %sfiles: %s%s", colorDim, strings.Join(t.FilesModified, ", "), colorReset)
		}
		w.line("")
	}

	if after := len(turns) - end; after > 0 {
		w.linef("%s... (%d turns after) ...%s", colorDim, after, colorReset)
	}
	return w.b.String(), hitLine, nil
}

// window picks the [start, end) range of turns to show.
func window(n, hit, context int) (int, int) {
	if context < 0 {
		return 0, n
	}
	if hit < 0 {
		return 0, min(n, 2*context+1)
	}
	return max(0, hit-context), min(n, hit+context+1)
}

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiSeq.ReplaceAllString(s, "")
}
