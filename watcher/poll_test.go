package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collector gathers events from a watcher goroutine for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// waitFor polls until pred sees a matching event or the deadline
// passes.
func (c *collector) waitFor(t *testing.T, pred func(Event) bool, what string) Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range c.snapshot() {
			if pred(ev) {
				return ev
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; events: %v", what, c.snapshot())
	return Event{}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPoll_WatchMissingFile(t *testing.T) {
	w := NewPoll()
	defer w.Close()

	err := w.Watch(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrPathNotExist) {
		t.Errorf("Watch() error = %v, want ErrPathNotExist", err)
	}
}

func TestPoll_WatchTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	writeFile(t, path, "{}")

	w := NewPoll()
	defer w.Close()

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Watch(path); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("second Watch() error = %v, want ErrAlreadyWatching", err)
	}
}

func TestPoll_UnwatchUnknown(t *testing.T) {
	w := NewPoll()
	defer w.Close()

	err := w.Unwatch(filepath.Join(t.TempDir(), "f.json"))
	if !errors.Is(err, ErrNotWatching) {
		t.Errorf("Unwatch() error = %v, want ErrNotWatching", err)
	}
}

func TestPoll_DetectsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	writeFile(t, path, "{}")

	w := NewPoll(WithInterval(20 * time.Millisecond))
	defer w.Close()

	var c collector
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, `{"changed": true}`)

	ev := c.waitFor(t, func(ev Event) bool { return ev.Op == OpWrite }, "write event")
	if ev.Path != path {
		t.Errorf("event path = %q, want %q", ev.Path, path)
	}
}

func TestPoll_DetectsRemoveAndRecreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	writeFile(t, path, "{}")

	w := NewPoll(WithInterval(20 * time.Millisecond))
	defer w.Close()

	var c collector
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, func(ev Event) bool { return ev.Op == OpRemove }, "remove event")

	writeFile(t, path, "{}")
	c.waitFor(t, func(ev Event) bool { return ev.Op == OpCreate }, "create event")
}

func TestPoll_NoEventWithoutChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	writeFile(t, path, "{}")

	w := NewPoll(WithInterval(20 * time.Millisecond))
	defer w.Close()

	var c collector
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	time.Sleep(150 * time.Millisecond)
	if got := c.snapshot(); len(got) != 0 {
		t.Errorf("unchanged file produced events: %v", got)
	}
}

func TestPoll_CloseIsIdempotent(t *testing.T) {
	w := NewPoll()
	w.Start()
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := w.Watch("anything"); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch() after Close error = %v, want ErrWatcherClosed", err)
	}
}

func TestNew_BackendSelection(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
	}{
		{"auto", BackendAuto},
		{"fsnotify", BackendFSNotify},
		{"poll", BackendPoll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.backend)
			if err != nil {
				t.Skipf("backend %s unavailable: %v", tt.backend, err)
			}
			if err := w.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestNew_DebounceWrapping(t *testing.T) {
	w, err := New(BackendPoll, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, ok := w.(*Debounced); !ok {
		t.Errorf("New() with debounce returned %T, want *Debounced", w)
	}
}
