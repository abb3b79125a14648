package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poll implements Watcher by polling file modification times. It has
// no platform dependencies and serves as the fallback backend when
// fsnotify is unavailable.
type Poll struct {
	mu sync.RWMutex

	// Watched files and their last observed modification times.
	// A zero time means the file is currently absent.
	files map[string]time.Time

	handlers    []Handler
	errHandlers []ErrorHandler

	interval time.Duration
	log      *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// NewPoll creates a polling watcher.
func NewPoll(opts ...Option) *Poll {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Poll{
		files:    make(map[string]time.Time),
		interval: cfg.Interval,
		log:      cfg.Logger,
	}
}

// Watch starts watching a file.
func (w *Poll) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.files[abs]; ok {
		return ErrAlreadyWatching
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.files[abs] = info.ModTime()
	return nil
}

// Unwatch stops watching a file.
func (w *Poll) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.files[abs]; !ok {
		return ErrNotWatching
	}

	delete(w.files, abs)
	return nil
}

// OnChange registers a change handler.
func (w *Poll) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// OnError registers an error handler.
func (w *Poll) OnError(handler ErrorHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errHandlers = append(w.errHandlers, handler)
}

// Start begins polling.
func (w *Poll) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.closed {
		return
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.started = true

	w.wg.Add(1)
	go w.pollLoop()
}

// Close stops the watcher.
func (w *Poll) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

func (w *Poll) pollLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkFiles()
		}
	}
}

func (w *Poll) checkFiles() {
	w.mu.RLock()
	snapshot := make(map[string]time.Time, len(w.files))
	for path, mod := range w.files {
		snapshot[path] = mod
	}
	w.mu.RUnlock()

	for path, lastMod := range snapshot {
		if event := w.checkFile(path, lastMod); event != nil {
			w.emit(*event)
		}
	}
}

// checkFile compares the current state of a file with the last
// observed modification time and produces at most one event.
func (w *Poll) checkFile(path string, lastMod time.Time) *Event {
	info, err := os.Stat(path)

	if os.IsNotExist(err) {
		if !lastMod.IsZero() {
			w.record(path, time.Time{})
			return &Event{Path: path, Op: OpRemove, Time: time.Now()}
		}
		return nil
	}
	if err != nil {
		w.log.Debug("stat failed", zap.String("path", path), zap.Error(err))
		return nil
	}

	currentMod := info.ModTime()

	if lastMod.IsZero() {
		w.record(path, currentMod)
		return &Event{Path: path, Op: OpCreate, Time: time.Now()}
	}

	if !currentMod.Equal(lastMod) {
		w.record(path, currentMod)
		return &Event{Path: path, Op: OpWrite, Time: time.Now()}
	}

	return nil
}

func (w *Poll) record(path string, mod time.Time) {
	w.mu.Lock()
	if _, ok := w.files[path]; ok {
		w.files[path] = mod
	}
	w.mu.Unlock()
}

func (w *Poll) emit(event Event) {
	w.mu.RLock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		safeCall(handler, event)
	}
}

var _ Watcher = (*Poll)(nil)
