package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ResultsWatcher reports when figures or tables below a results directory
// are created, rewritten or removed, so the viewer can follow a running
// experiment. Bursts of events are coalesced into one callback per interval.
type ResultsWatcher struct {
	dir      string
	interval time.Duration
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	done     sync.WaitGroup
	onChange func() // Called from a background goroutine
}

// NewResultsWatcher watches dir and every directory below it.
func NewResultsWatcher(dir string, interval time.Duration) (*ResultsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	rw := &ResultsWatcher{dir: dir, interval: interval, watcher: w}
	if err := rw.addTree(dir); err != nil {
		w.Close()
		return nil, err
	}
	return rw, nil
}

// OnChange sets the callback to invoke after a change. The callback is called
// from a background goroutine - use appropriate synchronization if updating UI.
func (rw *ResultsWatcher) OnChange(callback func()) {
	rw.onChange = callback
}

// Dir returns the watched directory.
func (rw *ResultsWatcher) Dir() string {
	return rw.dir
}

func (rw *ResultsWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return rw.watcher.Add(path)
	})
}

// Start begins watching in a background goroutine.
func (rw *ResultsWatcher) Start() {
	rw.stopCh = make(chan struct{})
	rw.done.Add(1)
	go rw.watchLoop()
}

// Stop ends the watch and releases the underlying watcher.
func (rw *ResultsWatcher) Stop() {
	if rw.stopCh != nil {
		close(rw.stopCh)
		rw.done.Wait()
		rw.stopCh = nil
	}
	rw.watcher.Close()
}

func (rw *ResultsWatcher) watchLoop() {
	defer rw.done.Done()
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case <-rw.stopCh:
			return
		case ev, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if rw.relevant(ev) {
				pending = true
			}
		case _, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
		case <-ticker.C:
			if pending && rw.onChange != nil {
				pending = false
				rw.onChange()
			}
		}
	}
}

// relevant reports whether ev touches a viewable file. New directories are
// added to the watch, since experiments create their output folders lazily.
func (rw *ResultsWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return rw.addTree(ev.Name) == nil
		}
	}
	_, ok := KindOf(ev.Name)
	return ok
}
