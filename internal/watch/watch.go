// Package watch reports changes to the files codexmate manages.
package watch

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"codexmate/internal/logger"
)

// Watcher emits the path of a watched file whenever it is written, created
// or renamed into place.
type Watcher struct {
	w       *fsnotify.Watcher
	files   map[string]struct{}
	changes chan string
	done    chan struct{}
	once    sync.Once
	log     logger.Logger
}

// New watches the parent directories of files. Directories are watched
// rather than files so atomic renames are seen; missing directories are
// skipped.
func New(l logger.Logger, files ...string) (*Watcher, error) {
	if l == nil {
		l = logger.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		w:       fw,
		files:   map[string]struct{}{},
		changes: make(chan string, 8),
		done:    make(chan struct{}),
		log:     l,
	}
	dirs := map[string]struct{}{}
	for _, f := range files {
		w.files[filepath.Clean(f)] = struct{}{}
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			l.Debug("not watching directory", "dir", d, "error", err)
		}
	}
	go w.loop()
	return w, nil
}

// Changes delivers changed file paths. Bursts are coalesced when the reader
// is slow.
func (w *Watcher) Changes() <-chan string { return w.changes }

func (w *Watcher) loop() {
	defer close(w.changes)
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if _, ok := w.files[filepath.Clean(ev.Name)]; !ok {
				continue
			}
			select {
			case w.changes <- ev.Name:
			default:
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher and closes the Changes channel.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.w.Close()
	})
	return err
}
