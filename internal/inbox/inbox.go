// Package inbox watches a directory for new case files.
package inbox

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultSettle is how long a file must stay unchanged before it is emitted.
const DefaultSettle = 500 * time.Millisecond

// Watcher emits paths of files created or written in a directory once
// they stop changing.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	settle     time.Duration
	log        logrus.FieldLogger
}

// New creates a watcher for files with the given extensions
// (default .txt and .json).
func New(extensions []string, settle time.Duration, log logrus.FieldLogger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".txt", ".json"}
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Watcher{watcher: w, extensions: extensions, settle: settle, log: log}, nil
}

// Watch starts monitoring dir. The channel closes when ctx is done or
// the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	out := make(chan string, 100)
	go func() {
		defer close(out)
		pending := make(map[string]time.Time)
		tick := time.NewTicker(w.settle / 2)
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.watched(ev.Name) {
					continue
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
					pending[ev.Name] = time.Now()
				}
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					delete(pending, ev.Name)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Warn("inbox watch error")
			case now := <-tick.C:
				for path, last := range pending {
					if now.Sub(last) < w.settle {
						continue
					}
					delete(pending, path)
					select {
					case out <- path:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) watched(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
