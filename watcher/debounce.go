package watcher

import (
	"sync"
	"time"
)

// Debounced wraps a Watcher and coalesces rapid events on the same
// file into a single event. Editors that save by delete-and-recreate
// or write in multiple chunks produce one event instead of a burst.
type Debounced struct {
	inner Watcher
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
	closed  bool

	handlers []Handler
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// NewDebounced wraps inner with a debounce window.
func NewDebounced(inner Watcher, delay time.Duration) *Debounced {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	dw := &Debounced{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]*pendingEvent),
	}
	inner.OnChange(dw.handle)
	return dw
}

// Watch starts watching a file.
func (dw *Debounced) Watch(path string) error {
	return dw.inner.Watch(path)
}

// Unwatch stops watching a file.
func (dw *Debounced) Unwatch(path string) error {
	return dw.inner.Unwatch(path)
}

// OnChange registers a handler for debounced events.
func (dw *Debounced) OnChange(handler Handler) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.handlers = append(dw.handlers, handler)
}

// OnError registers an error handler on the inner watcher.
func (dw *Debounced) OnError(handler ErrorHandler) {
	dw.inner.OnError(handler)
}

// Start begins event delivery.
func (dw *Debounced) Start() {
	dw.inner.Start()
}

// Close stops the watcher and cancels pending timers.
func (dw *Debounced) Close() error {
	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil
	}
	dw.closed = true
	for path, p := range dw.pending {
		p.timer.Stop()
		delete(dw.pending, path)
	}
	dw.mu.Unlock()

	return dw.inner.Close()
}

// Flush immediately fires all pending events.
func (dw *Debounced) Flush() {
	dw.mu.Lock()
	paths := make([]string, 0, len(dw.pending))
	for path, p := range dw.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	dw.mu.Unlock()

	for _, path := range paths {
		dw.fire(path)
	}
}

// handle receives raw events from the inner watcher.
func (dw *Debounced) handle(event Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.closed {
		return
	}

	if p, exists := dw.pending[event.Path]; exists {
		p.event.Op = coalesceOps(p.event.Op, event.Op)
		p.event.Time = event.Time
		p.timer.Reset(dw.delay)
		return
	}

	p := &pendingEvent{event: event}
	p.timer = time.AfterFunc(dw.delay, func() {
		dw.fire(event.Path)
	})
	dw.pending[event.Path] = p
}

// coalesceOps merges two operations on the same file observed within
// one debounce window. Removal wins outright; a create followed by
// writes is still a create.
func coalesceOps(old, new Op) Op {
	switch {
	case new == OpRemove || new == OpRename:
		return new
	case old == OpCreate:
		return OpCreate
	default:
		return new
	}
}

func (dw *Debounced) fire(path string) {
	dw.mu.Lock()
	p, exists := dw.pending[path]
	if !exists {
		dw.mu.Unlock()
		return
	}
	delete(dw.pending, path)
	event := p.event
	handlers := make([]Handler, len(dw.handlers))
	copy(handlers, dw.handlers)
	dw.mu.Unlock()

	for _, handler := range handlers {
		safeCall(handler, event)
	}
}

var _ Watcher = (*Debounced)(nil)
