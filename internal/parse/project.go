package parse

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

const cwdScanLines = 20

// EncodeProjectDir produces the directory name Claude Code uses for a
// workspace path: dot segments become a doubled dash, separators a dash.
func EncodeProjectDir(path string) string {
	s := strings.ReplaceAll(path, "/.", "--")
	return strings.ReplaceAll(s, "/", "-")
}

// DecodeProjectDir turns a project directory name back into a path. The
// encoding is lossy, so the filesystem is consulted: the plain decoding wins
// if it exists, otherwise segments are rejoined greedily, preferring the
// longest dash-joined name that exists at each level.
func DecodeProjectDir(slug string) (string, bool) {
	if !strings.HasPrefix(slug, "-") {
		return "", false
	}

	naive := "/" + strings.ReplaceAll(slug[1:], "-", "/")
	if filepath.Clean(naive) == naive && exists(naive) {
		return naive, true
	}

	segs := slugSegments(slug[1:])
	resolved := "/"
	for i := 0; i < len(segs); {
		next := i + 1
		name := segs[i]
		for k := len(segs); k > i+1; k-- {
			candidate := strings.Join(segs[i:k], "-")
			if exists(filepath.Join(resolved, candidate)) {
				name, next = candidate, k
				break
			}
		}
		resolved = filepath.Join(resolved, name)
		i = next
	}
	return resolved, true
}

// slugSegments splits on dashes; an empty part followed by a name marks a
// dot-prefixed segment.
func slugSegments(s string) []string {
	parts := strings.Split(s, "-")
	var segs []string
	for i := 0; i < len(parts); i++ {
		p := parts[i]
		if p == "" {
			if i+1 < len(parts) && parts[i+1] != "" {
				segs = append(segs, "."+parts[i+1])
				i++
			}
			continue
		}
		segs = append(segs, p)
	}
	return segs
}

// ProjectPath derives the workspace path of a session file from its parent
// directory name, falling back to the cwd recorded in the transcript when
// the decoded path is not on disk.
func ProjectPath(sessionFile string) string {
	decoded, ok := DecodeProjectDir(filepath.Base(filepath.Dir(sessionFile)))
	if !ok {
		return ""
	}
	if exists(decoded) {
		return decoded
	}
	if cwd := readCwd(sessionFile); cwd != "" {
		return cwd
	}
	return decoded
}

func readCwd(path string) string {
	lines, err := headLines(path, cwdScanLines)
	if err != nil {
		return ""
	}
	for _, line := range lines {
		cwd := gjson.Get(line, "cwd")
		if cwd.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(cwd.Str); s != "" {
			return s
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
