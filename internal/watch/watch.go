// Package watch delivers debounced change notifications for the task,
// context, and config files foreman keeps re-reading.
package watch

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 300 * time.Millisecond

// Watcher reports writes to an explicit set of files. Changes inside one
// debounce window collapse into a single callback per file, so an editor's
// write-then-rename burst does not trigger repeated recomputation.
type Watcher struct {
	fsw      *fsnotify.Watcher
	paths    map[string]bool
	debounce time.Duration
	onChange func(path string)
	logger   *log.Logger

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// New creates a watcher over the given file paths. The parent directories
// are watched rather than the files themselves: atomic writes replace files
// by rename, which silently detaches a watch on the file inode. A nil
// logger discards output.
func New(paths []string, debounce time.Duration, onChange func(path string), logger *log.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("watch: onChange callback is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		paths:    make(map[string]bool, len(paths)),
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		pending:  make(map[string]bool),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.paths[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return w, nil
}

// Run processes filesystem events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.paths[abs] {
				continue
			}
			w.schedule(abs)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("%s ERROR watch: fsnotify error=%v", time.Now().Format(time.RFC3339), err)
		}
	}
}

// schedule records a changed path and restarts the debounce window.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush invokes the callback for every path collected during the window,
// in deterministic order.
func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	sort.Strings(paths)
	for _, p := range paths {
		w.onChange(p)
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
