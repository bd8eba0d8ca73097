// Package watch re-imports session transcripts as Claude Code writes them.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/Zuo-Peng/opencontext/internal/index"
)

// DefaultDelay is how long a transcript must stay quiet before it is
// imported.
const DefaultDelay = 2 * time.Second

// Importer is the part of index.Importer the watcher needs.
type Importer interface {
	ImportSession(path string, force bool) (index.ImportResult, error)
}

type Watcher struct {
	root  string
	imp   Importer
	delay time.Duration
	log   zerolog.Logger

	// OnImport, when set, is called after every import attempt.
	OnImport func(path string, res index.ImportResult, err error)
}

func New(root string, imp Importer, delay time.Duration, log zerolog.Logger) *Watcher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Watcher{root: root, imp: imp, delay: delay, log: log}
}

// Run watches the projects root and its project directories until ctx is
// done. Transcripts are imported one at a time, once writes to them have
// quiesced.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addDir(fw, filepath.Join(w.root, e.Name()))
		}
	}
	w.log.Info().Str("root", w.root).Int("projects", len(fw.WatchList())-1).Msg("watching")

	ready := make(chan string, 64)
	deb := newDebouncer(w.delay, func(path string) {
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case path := <-ready:
			res, err := w.imp.ImportSession(path, false)
			switch {
			case errors.Is(err, index.ErrUnknownFormat):
				w.log.Debug().Str("file", path).Msg("skip non-transcript")
			case err != nil:
				w.log.Warn().Err(err).Str("file", path).Msg("import failed")
			case res.TurnsImported > 0:
				w.log.Info().Str("session", res.SessionID).Int("turns", res.TurnsImported).Msg("imported")
			}
			if w.OnImport != nil {
				w.OnImport(path, res, err)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == w.root {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addDir(fw, ev.Name)
					continue
				}
			}
			if !w.isTranscript(ev.Name) || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}

			deb.touch(ev.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// debouncer calls fire for a path once it has not been touched for delay.
type debouncer struct {
	delay time.Duration
	fire  func(path string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration, fire func(string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, timers: map[string]*time.Timer{}}
}

func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touchLocked(path)
}

func (d *debouncer) touchLocked(path string) {
	// Stop fails once the timer has fired; its callback may still be waiting
	// for mu, so start a fresh timer instead of re-arming that one.
	if t, ok := d.timers[path]; ok && t.Stop() {
		t.Reset(d.delay)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.timers[path] == t {
			delete(d.timers, path)
		}
		d.mu.Unlock()
		d.fire(path)
	})
	d.timers[path] = t
}

func (d *debouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}

func (w *Watcher) addDir(fw *fsnotify.Watcher, dir string) {
	if err := fw.Add(dir); err != nil {
		w.log.Warn().Err(err).Str("dir", dir).Msg("cannot watch project")
	}
}

// isTranscript keeps top-level session files of a project directory.
func (w *Watcher) isTranscript(path string) bool {
	name := filepath.Base(path)
	if filepath.Ext(name) != ".jsonl" || strings.HasPrefix(name, "agent-") {
		return false
	}
	return filepath.Dir(filepath.Dir(path)) == w.root
}
