package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FSNotify implements Watcher using fsnotify.
//
// The parent directory of each watched file is registered with
// fsnotify rather than the file itself, so atomic saves (write to a
// temp file, rename over the target) and recreation after deletion
// are still observed. Events are filtered down to the registered
// files before dispatch.
type FSNotify struct {
	mu sync.Mutex

	fs  *fsnotify.Watcher
	log *zap.Logger

	// Watched files and per-directory refcounts.
	files map[string]bool
	dirs  map[string]int

	handlers    []Handler
	errHandlers []ErrorHandler

	started bool
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewFSNotify creates an fsnotify-based watcher. It fails when the
// operating system cannot provide a native watch facility.
func NewFSNotify(opts ...Option) (*FSNotify, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FSNotify{
		fs:      fs,
		log:     cfg.Logger,
		files:   make(map[string]bool),
		dirs:    make(map[string]int),
		closeCh: make(chan struct{}),
	}, nil
}

// Watch starts watching a file.
func (w *FSNotify) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if w.files[abs] {
		return ErrAlreadyWatching
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	return nil
}

// Unwatch stops watching a file.
func (w *FSNotify) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !w.files[abs] {
		return ErrNotWatching
	}

	delete(w.files, abs)
	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.fs.Remove(dir)
	}
	return nil
}

// OnChange registers a change handler.
func (w *FSNotify) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// OnError registers an error handler.
func (w *FSNotify) OnError(handler ErrorHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errHandlers = append(w.errHandlers, handler)
}

// Start begins event delivery.
func (w *FSNotify) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.closed {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.loop()
}

// Close stops the watcher.
func (w *FSNotify) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fs.Close()
}

func (w *FSNotify) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

func (w *FSNotify) handle(ev fsnotify.Event) {
	abs := filepath.Clean(ev.Name)

	w.mu.Lock()
	watched := w.files[abs]
	w.mu.Unlock()
	if !watched {
		return
	}

	var op Op
	switch {
	case ev.Op.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Op.Has(fsnotify.Rename):
		op = OpRename
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
	case ev.Op.Has(fsnotify.Write):
		op = OpWrite
	default:
		return
	}

	w.log.Debug("file event",
		zap.String("path", abs),
		zap.Stringer("op", op))

	w.emit(Event{Path: abs, Op: op, Time: time.Now()})
}

func (w *FSNotify) emit(event Event) {
	w.mu.Lock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, handler := range handlers {
		safeCall(handler, event)
	}
}

func (w *FSNotify) emitError(err error) {
	w.mu.Lock()
	handlers := make([]ErrorHandler, len(w.errHandlers))
	copy(handlers, w.errHandlers)
	w.mu.Unlock()

	for _, handler := range handlers {
		handler(err)
	}
}

// safeCall invokes a handler with panic recovery so a misbehaving
// subscriber cannot kill the watch goroutine.
func safeCall(handler Handler, event Event) {
	defer func() {
		_ = recover()
	}()
	handler(event)
}

var _ Watcher = (*FSNotify)(nil)
