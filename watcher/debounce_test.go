package watcher

import (
	"sync"
	"testing"
	"time"
)

// fakeWatcher is a manual-emit inner watcher for debounce tests.
type fakeWatcher struct {
	mu       sync.Mutex
	handlers []Handler
	closed   bool
}

func (f *fakeWatcher) Watch(string) error   { return nil }
func (f *fakeWatcher) Unwatch(string) error { return nil }
func (f *fakeWatcher) OnError(ErrorHandler) {}
func (f *fakeWatcher) Start()               {}

func (f *fakeWatcher) OnChange(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

func (f *fakeWatcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWatcher) emit(ev Event) {
	f.mu.Lock()
	handlers := make([]Handler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func TestDebounced_CoalescesBurst(t *testing.T) {
	inner := &fakeWatcher{}
	dw := NewDebounced(inner, 50*time.Millisecond)
	defer dw.Close()

	var c collector
	dw.OnChange(c.handle)

	for i := 0; i < 5; i++ {
		inner.emit(Event{Path: "/tmp/f.json", Op: OpWrite, Time: time.Now()})
	}

	time.Sleep(150 * time.Millisecond)
	if got := c.snapshot(); len(got) != 1 {
		t.Errorf("burst of 5 writes produced %d events, want 1", len(got))
	}
}

func TestDebounced_SeparateFilesNotCoalesced(t *testing.T) {
	inner := &fakeWatcher{}
	dw := NewDebounced(inner, 50*time.Millisecond)
	defer dw.Close()

	var c collector
	dw.OnChange(c.handle)

	inner.emit(Event{Path: "/tmp/a.json", Op: OpWrite, Time: time.Now()})
	inner.emit(Event{Path: "/tmp/b.json", Op: OpWrite, Time: time.Now()})

	time.Sleep(150 * time.Millisecond)
	if got := c.snapshot(); len(got) != 2 {
		t.Errorf("events for two files coalesced to %d, want 2", len(got))
	}
}

func TestDebounced_OpCoalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Op
		want Op
	}{
		{"write then remove", []Op{OpWrite, OpRemove}, OpRemove},
		{"create then writes", []Op{OpCreate, OpWrite, OpWrite}, OpCreate},
		{"write then write", []Op{OpWrite, OpWrite}, OpWrite},
		{"create then rename", []Op{OpCreate, OpRename}, OpRename},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &fakeWatcher{}
			dw := NewDebounced(inner, time.Hour)
			defer dw.Close()

			var c collector
			dw.OnChange(c.handle)

			for _, op := range tt.ops {
				inner.emit(Event{Path: "/tmp/f.json", Op: op, Time: time.Now()})
			}
			dw.Flush()

			got := c.snapshot()
			if len(got) != 1 {
				t.Fatalf("got %d events, want 1", len(got))
			}
			if got[0].Op != tt.want {
				t.Errorf("coalesced op = %v, want %v", got[0].Op, tt.want)
			}
		})
	}
}

func TestDebounced_FlushFiresImmediately(t *testing.T) {
	inner := &fakeWatcher{}
	dw := NewDebounced(inner, time.Hour)
	defer dw.Close()

	var c collector
	dw.OnChange(c.handle)

	inner.emit(Event{Path: "/tmp/f.json", Op: OpWrite, Time: time.Now()})
	if got := c.snapshot(); len(got) != 0 {
		t.Fatalf("event fired before the window elapsed: %v", got)
	}

	dw.Flush()
	if got := c.snapshot(); len(got) != 1 {
		t.Errorf("Flush() delivered %d events, want 1", len(got))
	}
}

func TestDebounced_CloseDropsPending(t *testing.T) {
	inner := &fakeWatcher{}
	dw := NewDebounced(inner, 50*time.Millisecond)

	var c collector
	dw.OnChange(c.handle)

	inner.emit(Event{Path: "/tmp/f.json", Op: OpWrite, Time: time.Now()})
	if err := dw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !inner.closed {
		t.Error("Close() did not close the inner watcher")
	}

	time.Sleep(100 * time.Millisecond)
	if got := c.snapshot(); len(got) != 0 {
		t.Errorf("pending event fired after Close: %v", got)
	}
}
