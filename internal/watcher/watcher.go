// Package watcher provides a debounced, recursive filesystem watch over a
// workspace tree, coalescing qualifying raw events into deduplicated,
// sorted batches delivered to a control channel.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the debounce window applied when Options.Debounce is
// zero.
const DefaultDebounce = 300 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Root is the workspace directory to watch recursively.
	Root string
	// Debounce is the coalescing window; defaults to DefaultDebounce.
	Debounce time.Duration
}

// Watcher watches Root recursively and delivers debounced batches of
// changed file paths through GetChanges. fsnotify does not recurse on its
// own, so every subdirectory under Root is registered individually at
// startup, and a Create event for a new directory triggers registering it
// (and everything under it) before the loop continues.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration

	getChangesCh chan chan []string
	stopCh       chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
}

// New creates a Watcher and registers every qualifying subdirectory of
// opts.Root, but does not start delivering batches until Start is called.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsw:          fsw,
		root:         opts.Root,
		debounce:     debounce,
		getChangesCh: make(chan chan []string),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}

	if err := w.addRecursive(opts.Root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive registers Root and every subdirectory not excluded by
// isIgnoredDir.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isIgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Start runs the debounce/coalesce loop in a background goroutine. Call
// Stop to release the underlying OS watch.
func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.done)
	defer func() { _ = w.fsw.Close() }()

	pending := make(map[string]bool)
	ready := make([][]string, 0, 1)

	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]string, 0, len(pending))
		for p := range pending {
			batch = append(batch, p)
		}
		sort.Strings(batch)
		ready = append(ready, batch)
		pending = make(map[string]bool)
	}

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !isIgnoredDir(filepath.Base(event.Name)) {
						_ = w.addRecursive(event.Name)
					}
					continue
				}
			}
			if !isWatchedRustFile(event.Name) {
				continue
			}
			pending[event.Name] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			flush()
			timerC = nil

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// fsnotify backend errors are not fatal to the watch loop;
			// the next qualifying event still gets picked up.

		case respCh := <-w.getChangesCh:
			if len(ready) > 0 {
				respCh <- ready[0]
				ready = ready[1:]
			} else {
				respCh <- nil
			}

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// GetChanges returns the oldest undelivered batch of changed paths, or nil
// if none is ready yet. It blocks until the watch loop answers or ctx is
// done.
func (w *Watcher) GetChanges(ctx context.Context) ([]string, error) {
	respCh := make(chan []string, 1)
	select {
	case w.getChangesCh <- respCh:
	case <-w.done:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case batch := <-respCh:
		return batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop releases the underlying OS watch. It is idempotent and safe to call
// from multiple goroutines.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.done
}

func isIgnoredDir(name string) bool {
	return name == "target" || strings.HasPrefix(name, ".")
}

// isWatchedRustFile implements §4.7's event filter: extension "rs" and no
// path component is "target" or dotted.
func isWatchedRustFile(path string) bool {
	if filepath.Ext(path) != ".rs" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "target" || strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}
