// Package open launches an editor on a session transcript.
package open

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/opencontext/internal/index"
)

// OpenSession opens the transcript of sessionID (or a unique prefix of it)
// in $EDITOR, positioned on the first line of turn. A turn <= 0 opens the
// top of the file.
func OpenSession(db *index.DB, sessionID string, turn int) error {
	session, err := db.GetSessionByPrefix(sessionID)
	if err != nil {
		return fmt.Errorf("get session %s: %w", sessionID, err)
	}

	filePath := session.FilePath
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}

	lineNum := 1
	if turn > 0 {
		t, err := db.GetTurnByNumber(session.ID, turn)
		switch {
		case err == nil && t.StartLine > 0:
			lineNum = t.StartLine
		case err != nil && !errors.Is(err, index.ErrNotFound):
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}
	return openInEditor(editor, filePath, lineNum)
}

func editorArgs(editor, filePath string, lineNum int) []string {
	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nano"):
		return []string{"+" + strconv.Itoa(lineNum), filePath}
	case strings.Contains(editor, "code"):
		return []string{"--goto", filePath + ":" + strconv.Itoa(lineNum)}
	case strings.Contains(editor, "less"):
		return []string{"+" + strconv.Itoa(lineNum), filePath}
	default:
		return []string{filePath}
	}
}

func openInEditor(editor, filePath string, lineNum int) error {
	// EDITOR may carry flags, e.g. "code -w"
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		return fmt.Errorf("empty editor")
	}
	args := append(fields[1:], editorArgs(fields[0], filePath, lineNum)...)

	cmd := exec.Command(fields[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
