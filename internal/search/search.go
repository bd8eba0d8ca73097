// Package search finds turns and events in the record store.
package search

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Zuo-Peng/opencontext/internal/index"
)

// Result is one matching turn.
type Result struct {
	SessionID    string `json:"session_id"`
	TurnID       string `json:"turn_id"`
	TurnNumber   int    `json:"turn_number"`
	Timestamp    string `json:"timestamp"`
	Workspace    string `json:"workspace"`
	FilePath     string `json:"file_path"`
	SessionTitle string `json:"session_title,omitempty"`
	Title        string `json:"title"`
	Satisfaction string `json:"satisfaction"`
	Snippet      string `json:"snippet"`
}

type Options struct {
	Query      string
	Workspace  string // "" = all, otherwise a substring of the workspace path
	Since      string // "" = no filter, e.g. "2024-01-01"
	Limit      int
	PerSession bool // keep only the best hit of each session
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

var (
	// a bare FTS5 term: optional column filter, word characters, optional
	// prefix star, optionally wrapped in grouping parens
	bareTerm   = regexp.MustCompile(`^\(*((title|description|user_message|assistant_summary):)?[\pL\pN_]+\*?\)*$`)
	ftsKeyword = map[string]bool{"AND": true, "OR": true, "NOT": true}
)

// ftsQuery makes free text safe for MATCH. Operators, bare words, prefix
// terms and quoted phrases pass through; anything else, such as a file
// name or a hyphenated word, becomes a quoted phrase.
func ftsQuery(q string) string {
	var out []string
	for q = strings.TrimSpace(q); q != ""; q = strings.TrimLeftFunc(q, unicode.IsSpace) {
		if q[0] == '"' {
			end := closingQuote(q)
			if end < 0 {
				out = append(out, q+`"`)
				break
			}
			out = append(out, q[:end+1])
			q = q[end+1:]
			continue
		}

		end := strings.IndexFunc(q, unicode.IsSpace)
		if end < 0 {
			end = len(q)
		}
		term := q[:end]
		q = q[end:]
		if !ftsKeyword[term] && !bareTerm.MatchString(term) {
			term = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
		}
		out = append(out, term)
	}
	return strings.Join(out, " ")
}

// closingQuote returns the index of the quote ending the phrase that
// starts q, skipping doubled quotes, or -1.
func closingQuote(q string) int {
	for i := 1; i < len(q); i++ {
		if q[i] != '"' {
			continue
		}
		if i+1 < len(q) && q[i+1] == '"' {
			i++
			continue
		}
		return i
	}
	return -1
}

// makeSnippet cuts radius runes either side of the first case-insensitive
// match of query and marks the match with >>> <<<. Without a match it
// returns the head of text.
func makeSnippet(text, query string, radius int) string {
	runes := []rune(text)
	q := []rune(query)
	at := matchAt(runes, q)
	if at < 0 {
		if len(runes) > 2*radius {
			return string(runes[:2*radius]) + "..."
		}
		return text
	}

	end := at + len(q)
	from, to := max(at-radius, 0), min(end+radius, len(runes))
	var b strings.Builder
	if from > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[from:at]))
	b.WriteString(">>>" + string(runes[at:end]) + "<<<")
	b.WriteString(string(runes[end:to]))
	if to < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

func matchAt(text, q []rune) int {
	if len(q) == 0 {
		return -1
	}
outer:
	for i := 0; i+len(q) <= len(text); i++ {
		for j, r := range q {
			if unicode.ToLower(text[i+j]) != unicode.ToLower(r) {
				continue outer
			}
		}
		return i
	}
	return -1
}

// Search finds turns matching the query. Queries with Han characters use a
// substring scan, since the unicode61 tokenizer does not split them into
// words.
func Search(db *index.DB, opts Options) ([]Result, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	limit := opts.Limit
	if opts.PerSession {
		opts.Limit *= 3 // leave room for duplicates
	}

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else if results, err = searchFTS(db, opts); err != nil {
		// unbalanced parens and the like: treat the query as plain text
		results, err = searchLike(db, opts)
	}
	if err != nil || !opts.PerSession {
		return results, err
	}
	return bestPerSession(results, limit), nil
}

// bestPerSession keeps the first (best ranked) result of each session.
func bestPerSession(results []Result, limit int) []Result {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		if seen[r.SessionID] {
			continue
		}
		seen[r.SessionID] = true
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

func filters(opts Options, conditions []string, args []any) ([]string, []any) {
	if opts.Workspace != "" {
		conditions = append(conditions, "s.workspace LIKE ?")
		args = append(args, "%"+opts.Workspace+"%")
	}
	if opts.Since != "" {
		conditions = append(conditions, "t.timestamp >= ?")
		args = append(args, opts.Since)
	}
	return conditions, args
}

const resultColumns = `t.session_id, t.id, t.turn_number, t.timestamp, s.workspace, s.file_path, s.title, t.title, t.satisfaction`

// queryResults runs a SELECT of resultColumns plus one text column and
// turns that column into the snippet with snip.
func queryResults(db *index.DB, query string, args []any, snip func(text string) string) ([]Result, error) {
	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var text string
		if err := rows.Scan(&r.SessionID, &r.TurnID, &r.TurnNumber, &r.Timestamp, &r.Workspace,
			&r.FilePath, &r.SessionTitle, &r.Title, &r.Satisfaction, &text); err != nil {
			return nil, err
		}
		r.Snippet = snip(text)
		results = append(results, r)
	}
	return results, rows.Err()
}

func searchFTS(db *index.DB, opts Options) ([]Result, error) {
	conditions, args := filters(opts, []string{"turns_fts MATCH ?"}, []any{ftsQuery(opts.Query)})
	query := fmt.Sprintf(`
		SELECT %s, snippet(turns_fts, -1, '>>>', '<<<', '...', 40)
		FROM turns_fts
		JOIN turns t ON turns_fts.rowid = t.rowid
		JOIN sessions s ON t.session_id = s.id
		WHERE %s
		ORDER BY bm25(turns_fts, 3.0, 2.0, 1.0, 1.0)
		LIMIT ?
	`, resultColumns, strings.Join(conditions, " AND "))

	return queryResults(db, query, append(args, opts.Limit), func(text string) string { return text })
}

func searchLike(db *index.DB, opts Options) ([]Result, error) {
	pattern := "%" + opts.Query + "%"
	conditions, args := filters(opts,
		[]string{"(t.user_message LIKE ? OR t.title LIKE ? OR t.description LIKE ? OR t.assistant_summary LIKE ?)"},
		[]any{pattern, pattern, pattern, pattern})
	query := fmt.Sprintf(`
		SELECT %s, t.title || char(10) || t.user_message || char(10) || t.description || char(10) || t.assistant_summary
		FROM turns t
		JOIN sessions s ON t.session_id = s.id
		WHERE %s
		ORDER BY t.timestamp DESC
		LIMIT ?
	`, resultColumns, strings.Join(conditions, " AND "))

	return queryResults(db, query, append(args, opts.Limit), func(text string) string {
		return makeSnippet(text, opts.Query, 30)
	})
}

// Recent returns the latest turns, newest first.
func Recent(db *index.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	conditions, args := filters(opts, []string{"1 = 1"}, nil)
	query := fmt.Sprintf(`
		SELECT %s, t.user_message
		FROM turns t
		JOIN sessions s ON t.session_id = s.id
		WHERE %s
		ORDER BY t.timestamp DESC
		LIMIT ?
	`, resultColumns, strings.Join(conditions, " AND "))

	return queryResults(db, query, append(args, opts.Limit), func(text string) string {
		return makeSnippet(text, "", 60)
	})
}

// Events searches event titles and descriptions.
func Events(db *index.DB, query string, limit int) ([]index.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	const columns = "e.id, e.title, e.description, e.status, e.updated_at"
	like := func() ([]index.Event, error) {
		pattern := "%" + query + "%"
		return scanEvents(db.Raw().Query(`
			SELECT `+columns+`
			FROM events e
			WHERE e.title LIKE ? OR e.description LIKE ?
			ORDER BY e.updated_at DESC
			LIMIT ?`, pattern, pattern, limit))
	}
	if containsCJK(query) {
		return like()
	}

	events, err := scanEvents(db.Raw().Query(`
		SELECT `+columns+`
		FROM events_fts
		JOIN events e ON events_fts.rowid = e.rowid
		WHERE events_fts MATCH ?
		ORDER BY bm25(events_fts)
		LIMIT ?`, ftsQuery(query), limit))
	if err != nil {
		return like()
	}
	return events, nil
}

func scanEvents(rows *sql.Rows, err error) ([]index.Event, error) {
	if err != nil {
		return nil, fmt.Errorf("event search: %w", err)
	}
	defer rows.Close()

	var out []index.Event
	for rows.Next() {
		var e index.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Status, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event search: %w", err)
	}
	return out, nil
}
