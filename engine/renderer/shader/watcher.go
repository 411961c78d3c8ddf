package shader

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/lumen/engine/core"
)

// Watcher reports programs whose source files changed on disk. It only
// notifies; reloading and rebuilding happen on the render loop.
type Watcher struct {
	library  *Library
	fsnotify *fsnotify.Watcher
	changes  chan string
	done     chan struct{}
	isClosed bool
}

func NewWatcher(library *Library, dir string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating shader watcher")
	}
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		return nil, errors.Wrapf(err, "watching %s", dir)
	}
	w := &Watcher{
		library:  library,
		fsnotify: fsWatch,
		changes:  make(chan string, 16),
		done:     make(chan struct{}),
	}
	go w.start()
	return w, nil
}

// Changes delivers the names of programs to reload. Duplicates are possible.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

func (w *Watcher) start() {
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			for _, name := range w.library.ProgramsUsing(filepath.Base(e.Name)) {
				select {
				case w.changes <- name:
				default:
					// A reload for this burst is already queued.
				}
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("shader watcher: %s", err)

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *Watcher) Close() {
	if w.isClosed {
		return
	}
	w.isClosed = true
	close(w.done)
}

// Drain collects the distinct pending program names without blocking.
func (w *Watcher) Drain() []string {
	seen := map[string]bool{}
	var out []string
	for {
		select {
		case name := <-w.changes:
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		default:
			return out
		}
	}
}
