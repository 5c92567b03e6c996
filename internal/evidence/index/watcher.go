package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// workingSetWindow is how long a touched file stays in the working set.
const workingSetWindow = 30 * time.Minute

// workingSetCap bounds how many files the working set reports.
const workingSetCap = 20

// Watcher tracks recently written files under a repo root. The evidence
// engine treats those as working-set signals.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	onChange func(path string)

	mu      sync.Mutex
	touched map[string]time.Time // rel path -> last write

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher over root; it is inert until Start.
func NewWatcher(root string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		root:    root,
		watcher: fw,
		touched: make(map[string]time.Time),
		done:    make(chan struct{}),
	}, nil
}

// OnChange sets an optional callback invoked with each changed rel path.
// Callers use it to reindex files incrementally.
func (w *Watcher) OnChange(fn func(path string)) { w.onChange = fn }

// Start registers every directory under root and begins consuming
// events.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skippedDirs[d.Name()] || (strings.HasPrefix(d.Name(), ".") && path != w.root) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	// New directories need registering for their future children.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(ev.Name)
		}
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || !indexable(rel) {
		return
	}

	w.mu.Lock()
	w.touched[rel] = time.Now()
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(rel)
	}
}

// WorkingSet returns recently written files, newest first.
func (w *Watcher) WorkingSet() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	type entry struct {
		path string
		at   time.Time
	}
	cutoff := time.Now().Add(-workingSetWindow)
	var entries []entry
	for path, at := range w.touched {
		if at.Before(cutoff) {
			delete(w.touched, path)
			continue
		}
		entries = append(entries, entry{path, at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.After(entries[j].at) })

	if len(entries) > workingSetCap {
		entries = entries[:workingSetCap]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.path
	}
	return out
}

// Close stops the loop and releases the OS watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
