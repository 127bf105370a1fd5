// Package watchio implements the File Watcher component of spec.md §4.7
// using fsnotify, following the same non-blocking-completion-queue shape
// as internal/httpio and internal/fileio: Watch never calls into JS
// directly, it queues FsEvents for the scheduler to drain.
//
// Grounded on bennypowers-cem's internal/platform/filewatcher.go
// (FSNotifyFileWatcher): the translateEvents goroutine and graceful
// close-with-WaitGroup shape are carried over; the op-flags translation
// is narrowed from fsnotify's five-way Op bitmask to spec.md §3's three-way
// FsEventKind (Modified/Renamed/Deleted), since that is the only
// vocabulary the watch(path, cb) JS contract exposes.
package watchio

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mystral-js/mystral/internal/core"
)

// Event is one filesystem change, queued for delivery to its watch's
// callback.
type Event struct {
	WatchID  uint32
	FullPath string
	Kind     core.FsEventKind
}

// Watcher owns one fsnotify.Watcher and fans its events out to
// per-registration callback ids, tagging each with the watch_id that
// `watch(path, cb)` returned.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	nextID   uint32
	watchers map[string]uint32 // path -> watch id, for event attribution
	pending  []Event
	done     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// New creates a Watcher backed by a real fsnotify.Watcher. Returns an
// error only if the OS-level watch facility can't be initialized.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, watchers: make(map[string]uint32), done: make(chan struct{})}
	w.wg.Add(1)
	go w.translate()
	return w, nil
}

// Watch starts watching path and returns a watch_id used to correlate
// future FsEvents with this registration.
func (w *Watcher) Watch(path string) (uint32, error) {
	if err := w.fsw.Add(path); err != nil {
		return 0, err
	}
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.watchers[path] = id
	w.mu.Unlock()
	return id, nil
}

// Unwatch stops watching path.
func (w *Watcher) Unwatch(path string) error {
	w.mu.Lock()
	delete(w.watchers, path)
	w.mu.Unlock()
	return w.fsw.Remove(path)
}

func (w *Watcher) translate() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			kind, ok := classify(ev.Op)
			if !ok {
				continue
			}
			w.mu.Lock()
			id := w.watchers[ev.Name]
			if id == 0 {
				// event on a file inside a watched directory; attribute it
				// to the directory's watch id if we can find one by prefix.
				for p, wid := range w.watchers {
					if len(ev.Name) > len(p) && ev.Name[:len(p)] == p {
						id = wid
						break
					}
				}
			}
			w.pending = append(w.pending, Event{WatchID: id, FullPath: ev.Name, Kind: kind})
			w.mu.Unlock()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func classify(op fsnotify.Op) (core.FsEventKind, bool) {
	switch {
	case op&fsnotify.Remove != 0:
		return core.FsDeleted, true
	case op&fsnotify.Rename != 0:
		return core.FsRenamed, true
	case op&fsnotify.Write != 0, op&fsnotify.Create != 0:
		return core.FsModified, true
	default:
		return 0, false
	}
}

// DrainCompletions is called by the scheduler once per poll_once iteration
// (spec.md §4.5 step 5). deliver is invoked once per queued event, FIFO.
func (w *Watcher) DrainCompletions(deliver func(Event)) bool {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return false
	}
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, ev := range batch {
		deliver(ev)
	}
	return true
}

// Close stops the watcher goroutine and releases the OS watch handle.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	close(w.done)
	w.wg.Wait()
	return w.fsw.Close()
}
