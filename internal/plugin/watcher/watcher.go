// Package watcher reports changes under plugin folders.
//
// A Watcher watches each added folder recursively with fsnotify and
// coalesces bursts of file events into one Change per folder, delivered
// once the folder has been quiet for the debounce delay.
package watcher

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("folder is already being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// DefaultDelay is the debounce delay used when none is configured.
const DefaultDelay = 200 * time.Millisecond

// Change is a debounced batch of file events in one plugin folder.
type Change struct {
	// Folder is the absolute plugin folder.
	Folder string

	// Paths are the changed files, sorted and without duplicates.
	Paths []string

	// Time is when the last event of the batch arrived.
	Time time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger for dropped events and watch errors.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher watches plugin folders.
type Watcher struct {
	fsw    *fsnotify.Watcher
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	folders map[string]bool
	pending map[string]*pending
	closed  bool

	changes chan Change
	errors  chan error
	closeCh chan struct{}
	loopWg  sync.WaitGroup
	fireWg  sync.WaitGroup
}

type pending struct {
	paths map[string]struct{}
	last  time.Time
	timer *time.Timer
}

// New creates a Watcher and starts its event loop.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		delay:   DefaultDelay,
		logger:  slog.Default(),
		folders: make(map[string]bool),
		pending: make(map[string]*pending),
		changes: make(chan Change, 16),
		errors:  make(chan error, 16),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.loopWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Add watches folder and every directory below it.
func (w *Watcher) Add(folder string) error {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "watch", Path: abs, Err: errors.New("not a directory")}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if w.folders[abs] {
		return ErrAlreadyWatching
	}

	if err := w.addTree(abs); err != nil {
		return err
	}
	w.folders[abs] = true
	return nil
}

// addTree adds abs and its subdirectories to fsnotify, skipping hidden
// directories.
func (w *Watcher) addTree(abs string) error {
	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != abs && isHidden(p) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// Folders returns the watched plugin folders.
func (w *Watcher) Folders() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.folders))
	for f := range w.folders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Changes returns the debounced change channel. It is closed by Close.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns watch errors. It is closed by Close.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and drops pending changes.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for folder, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, folder)
	}
	w.mu.Unlock()

	w.loopWg.Wait()
	w.fireWg.Wait()
	close(w.changes)
	close(w.errors)
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.loopWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("dropping watch error", "error", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || isHidden(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	folder := w.folderOf(ev.Name)
	if folder == "" {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watching new directory", "path", ev.Name, "error", err)
			}
		}
	}

	now := time.Now()
	if p, ok := w.pending[folder]; ok {
		p.paths[ev.Name] = struct{}{}
		p.last = now
		p.timer.Reset(w.delay)
		return
	}
	p := &pending{paths: map[string]struct{}{ev.Name: {}}, last: now}
	p.timer = time.AfterFunc(w.delay, func() { w.fire(folder) })
	w.pending[folder] = p
}

// folderOf returns the longest watched folder containing path.
func (w *Watcher) folderOf(path string) string {
	best := ""
	for f := range w.folders {
		if (path == f || strings.HasPrefix(path, f+string(filepath.Separator))) && len(f) > len(best) {
			best = f
		}
	}
	return best
}

func (w *Watcher) fire(folder string) {
	w.mu.Lock()
	p, ok := w.pending[folder]
	if !ok || w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, folder)
	w.fireWg.Add(1)
	w.mu.Unlock()
	defer w.fireWg.Done()

	change := Change{Folder: folder, Time: p.last}
	for path := range p.paths {
		change.Paths = append(change.Paths, path)
	}
	sort.Strings(change.Paths)

	select {
	case w.changes <- change:
	case <-w.closeCh:
	}
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && base[0] == '.'
}
