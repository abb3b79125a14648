package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newFSNotifyOrSkip(t *testing.T) *FSNotify {
	t.Helper()
	w, err := NewFSNotify(WithInterval(20 * time.Millisecond))
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestFSNotify_WatchMissingFile(t *testing.T) {
	w := newFSNotifyOrSkip(t)

	err := w.Watch(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrPathNotExist) {
		t.Errorf("Watch() error = %v, want ErrPathNotExist", err)
	}
}

func TestFSNotify_WatchTwice(t *testing.T) {
	w := newFSNotifyOrSkip(t)

	path := filepath.Join(t.TempDir(), "f.json")
	writeFile(t, path, "{}")

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Watch(path); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("second Watch() error = %v, want ErrAlreadyWatching", err)
	}
}

func TestFSNotify_DetectsWrite(t *testing.T) {
	w := newFSNotifyOrSkip(t)

	path := filepath.Join(t.TempDir(), "f.json")
	writeFile(t, path, "{}")

	var c collector
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, `{"changed": true}`)

	ev := c.waitFor(t, func(ev Event) bool {
		return ev.Op == OpWrite || ev.Op == OpCreate
	}, "write event")
	if ev.Path != path {
		t.Errorf("event path = %q, want %q", ev.Path, path)
	}
}

func TestFSNotify_IgnoresSiblingFiles(t *testing.T) {
	w := newFSNotifyOrSkip(t)

	dir := t.TempDir()
	watched := filepath.Join(dir, "watched.json")
	sibling := filepath.Join(dir, "sibling.json")
	writeFile(t, watched, "{}")

	var c collector
	w.OnChange(c.handle)
	if err := w.Watch(watched); err != nil {
		t.Fatal(err)
	}
	w.Start()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, sibling, "{}")
	time.Sleep(150 * time.Millisecond)

	for _, ev := range c.snapshot() {
		if ev.Path == sibling {
			t.Errorf("unwatched sibling produced event: %v", ev)
		}
	}
}

func TestFSNotify_AtomicReplace(t *testing.T) {
	w := newFSNotifyOrSkip(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "f.json")
	writeFile(t, path, "{}")

	var c collector
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	// Editor-style atomic save: write a temp file, rename it over the
	// watched file. The directory watch still reports the target path.
	time.Sleep(50 * time.Millisecond)
	tmp := filepath.Join(dir, "f.json.tmp")
	writeFile(t, tmp, `{"replaced": true}`)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	c.waitFor(t, func(ev Event) bool { return ev.Path == path }, "event for replaced file")
}

func TestFSNotify_DetectsRemove(t *testing.T) {
	w := newFSNotifyOrSkip(t)

	path := filepath.Join(t.TempDir(), "f.json")
	writeFile(t, path, "{}")

	var c collector
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	c.waitFor(t, func(ev Event) bool { return ev.Op == OpRemove }, "remove event")
}

func TestFSNotify_UnwatchReleasesDirectory(t *testing.T) {
	w := newFSNotifyOrSkip(t)

	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	writeFile(t, a, "{}")
	writeFile(t, b, "{}")

	if err := w.Watch(a); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(b); err != nil {
		t.Fatal(err)
	}
	if err := w.Unwatch(a); err != nil {
		t.Fatalf("Unwatch(a) error = %v", err)
	}

	// The shared directory watch survives while b remains registered.
	var c collector
	w.OnChange(c.handle)
	w.Start()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, b, `{"x": 1}`)
	c.waitFor(t, func(ev Event) bool { return ev.Path == b }, "event for remaining file")

	if err := w.Unwatch(b); err != nil {
		t.Fatalf("Unwatch(b) error = %v", err)
	}
	if err := w.Unwatch(b); !errors.Is(err, ErrNotWatching) {
		t.Errorf("double Unwatch error = %v, want ErrNotWatching", err)
	}
}

func TestFSNotify_HandlerPanicDoesNotKillLoop(t *testing.T) {
	w := newFSNotifyOrSkip(t)

	path := filepath.Join(t.TempDir(), "f.json")
	writeFile(t, path, "{}")

	var c collector
	w.OnChange(func(Event) { panic("subscriber bug") })
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	w.Start()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, `{"x": 1}`)
	c.waitFor(t, func(ev Event) bool { return ev.Path == path }, "event after panicking handler")
}
