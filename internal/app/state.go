// Package app holds the results viewer's state, events and theme.
package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Kind classifies a result file.
type Kind int

const (
	KindFigure Kind = iota // PNG heatmap or bar chart
	KindTable              // xlsx report sheet
)

func (k Kind) String() string {
	if k == KindTable {
		return "table"
	}
	return "figure"
}

// Entry is one viewable file below the results directory.
type Entry struct {
	Path string // Absolute path
	Rel  string // Path relative to the results directory, slash separated
	Kind Kind
}

// Name returns the file name without its extension.
func (e Entry) Name() string {
	base := filepath.Base(e.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// KindOf returns the kind of a result file, or false when the viewer cannot
// show it.
func KindOf(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return KindFigure, true
	case ".xlsx":
		return KindTable, true
	}
	return 0, false
}

// Scan lists the figures and tables below dir, sorted by relative path.
// Lock files and hidden directories are skipped.
func Scan(dir string) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var entries []Entry
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		kind, ok := KindOf(path)
		if !ok || strings.HasPrefix(d.Name(), "~$") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: path, Rel: filepath.ToSlash(rel), Kind: kind})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries, nil
}

// State holds the results directory being browsed and the selected entry.
type State struct {
	mu sync.RWMutex

	ResultsDir string
	Entries    []Entry
	Selected   int // Index into Entries, -1 when nothing is selected

	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventResultsLoaded EventType = iota // data: results directory
	EventSelectionChanged               // data: Entry
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates an empty state.
func NewState() *State {
	return &State{
		Selected:  -1,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Open scans dir and makes it the results directory.
func (s *State) Open(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	entries, err := Scan(abs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ResultsDir = abs
	s.Entries = entries
	s.Selected = -1
	s.mu.Unlock()

	s.Emit(EventResultsLoaded, abs)
	return nil
}

// Rescan re-reads the current results directory, keeping the selection when
// the selected file still exists.
func (s *State) Rescan() error {
	s.mu.RLock()
	dir := s.ResultsDir
	var selected string
	if s.Selected >= 0 && s.Selected < len(s.Entries) {
		selected = s.Entries[s.Selected].Path
	}
	s.mu.RUnlock()
	if dir == "" {
		return nil
	}

	entries, err := Scan(dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.Entries = entries
	s.Selected = -1
	for i, e := range entries {
		if e.Path == selected {
			s.Selected = i
			break
		}
	}
	s.mu.Unlock()

	s.Emit(EventResultsLoaded, dir)
	return nil
}

// Select marks entry i as selected and emits EventSelectionChanged.
func (s *State) Select(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.Entries) {
		s.mu.Unlock()
		return fmt.Errorf("no result entry %d", i)
	}
	s.Selected = i
	entry := s.Entries[i]
	s.mu.Unlock()

	s.Emit(EventSelectionChanged, entry)
	return nil
}

// Snapshot returns a copy of the entries and the selected index.
func (s *State) Snapshot() ([]Entry, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.Entries...), s.Selected
}
