package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Zuo-Peng/opencontext/internal/parse"
)

type SessionFile struct {
	Path      string `json:"path"`
	SessionID string `json:"session_id"`
	Project   string `json:"project"`
	Mtime     int64  `json:"mtime"`
	Size      int64  `json:"size"`
}

// Discover lists the top-level session transcripts under a Claude projects
// root. Sub-agent transcripts are skipped. A non-empty projectFilter keeps
// only projects whose decoded path contains it. A missing root yields no
// files.
func Discover(root, projectFilter string) ([]SessionFile, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []SessionFile
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		project, ok := parse.DecodeProjectDir(e.Name())
		if !ok {
			project = e.Name()
		}
		if projectFilter != "" && !strings.Contains(project, projectFilter) {
			continue
		}

		found, err := scanProject(filepath.Join(root, e.Name()), project)
		if err != nil {
			continue // skip unreadable dirs
		}
		files = append(files, found...)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func scanProject(dir, project string) ([]SessionFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []SessionFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".jsonl" {
			continue
		}
		if strings.HasPrefix(name, "agent-") || strings.Contains(name, "sessions-index") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, SessionFile{
			Path:      filepath.Join(dir, name),
			SessionID: strings.TrimSuffix(name, ".jsonl"),
			Project:   project,
			Mtime:     info.ModTime().Unix(),
			Size:      info.Size(),
		})
	}
	return files, nil
}

// Stat describes a single session file the same way Discover does.
func Stat(path string) (SessionFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SessionFile{}, err
	}
	project := parse.ProjectPath(path)
	if project == "" {
		project = filepath.Base(filepath.Dir(path))
	}
	return SessionFile{
		Path:      path,
		SessionID: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		Project:   project,
		Mtime:     info.ModTime().Unix(),
		Size:      info.Size(),
	}, nil
}
