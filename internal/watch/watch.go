// ABOUTME: Filesystem watcher that reports plugin directory changes.
// ABOUTME: Bursts of fsnotify events are debounced into a single change callback.

package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when New is given a non-positive debounce.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes a directory tree and calls onChange after plugin files
// are created, renamed or removed.
type Watcher struct {
	dir      string
	ext      string
	debounce time.Duration
	onChange func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	timer   *time.Timer
	done    chan struct{}
	stopped bool
	running sync.WaitGroup
}

// New creates a watcher for dir. Only files ending in ext and directories
// are considered relevant.
func New(dir, ext string, debounce time.Duration, onChange func()) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		ext:      ext,
		debounce: debounce,
		onChange: onChange,
	}
}

// Start registers the directory tree with fsnotify and begins processing
// events in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch plugin dir: %w", err)
	}
	w.addSubdirs(fsw, w.dir)

	w.mu.Lock()
	w.stopped = false
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.mu.Unlock()

	log.Printf("Watching %s for plugin changes", w.dir)

	go w.loop(ctx, fsw)
	return nil
}

// Stop ends event processing and cancels a pending change notification.
// It returns only after a callback that was already running has finished,
// so onChange is never called once Stop returns. onChange must not call Stop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.running.Wait()
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer func() {
		fsw.Close()
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.stopped = true
		close(w.done)
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Plugin watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
		return
	}

	isDir := false
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			isDir = true
			w.addSubdirs(fsw, event.Name)
		}
	}

	if !isDir && !w.relevant(event) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire runs onChange unless the watcher has stopped in the meantime.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.running.Add(1)
	w.mu.Unlock()

	defer w.running.Done()
	w.onChange()
}

// relevant reports whether an event can change the set of discovered plugins.
// Removed or renamed paths are no longer statable, so anything without the
// extension is treated as a possible directory.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if strings.HasSuffix(event.Name, w.ext) {
		return true
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return filepath.Ext(event.Name) == ""
	}
	return false
}

func (w *Watcher) addSubdirs(fsw *fsnotify.Watcher, root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			log.Printf("Warning: could not watch %s: %v", path, err)
		}
		return nil
	})
}
