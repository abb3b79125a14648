package settings

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/deepforge/settings/document"
	"github.com/deepforge/settings/notify"
	"github.com/deepforge/settings/watcher"
)

// changeSourceLocal marks changes made through the store's own API,
// as opposed to reloads caused by external file edits.
const changeSourceLocal = "local"

// Settings is a hierarchical, file-backed configuration store with
// dotted-path access and live external-change detection.
//
// All Get/Set/Delete calls are expected on a single primary
// goroutine; the watcher delivers reloads on its own goroutine and
// coordinates with in-flight operations through a cooperative
// suppression flag rather than a lock. A reload that fires while an
// operation is in progress is dropped, not deferred.
type Settings struct {
	path      string
	autowrite bool
	readonly  bool
	onChange  func()

	doc        Document
	docFactory DocumentFactory
	root       *Storage

	enableWatcher bool
	backend       watcher.Backend
	w             watcher.Watcher
	pollInterval  time.Duration
	debounce      time.Duration

	// armed is the suppression flag: false while an internal
	// operation or a reload is in progress.
	armed         atomic.Bool
	watchAttached atomic.Bool

	// cooling is true between a reload and the re-arm timer firing,
	// so local operations during the window do not re-arm early.
	cooling atomic.Bool

	rearmDelay time.Duration
	rearmMu    sync.Mutex
	rearmTimer *time.Timer

	notifier *notify.Notifier
	errs     chan error
	log      *zap.Logger
	closed   atomic.Bool
}

// New creates a store. A backing file path (WithPath) or a custom
// document (WithDocument) is required; there is no implicit default
// location.
func New(opts ...Option) (*Settings, error) {
	s := &Settings{
		autowrite:     true,
		enableWatcher: true,
		backend:       watcher.BackendAuto,
		rearmDelay:    time.Second,
		notifier:      notify.New(),
		errs:          make(chan error, 16),
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.path != "" {
		abs, err := filepath.Abs(s.path)
		if err != nil {
			return nil, err
		}
		s.path = abs
	}

	if s.doc == nil {
		if s.path == "" {
			return nil, ErrNoDocument
		}
		factory := s.docFactory
		if factory == nil {
			factory = func(path string, autowrite bool) (Document, error) {
				return document.New(path, autowrite)
			}
		}
		doc, err := factory(s.path, s.autowrite)
		if err != nil {
			return nil, err
		}
		s.doc = doc
	}

	s.root = newStorage(s.doc, nil, "", s.readonly)

	if s.enableWatcher && s.path != "" {
		s.initWatcher()
	}
	return s, nil
}

// initWatcher builds the change watcher, falling back from fsnotify
// to polling, and attaches the watch target if it already exists.
// When both backends fail the store works without live reload.
func (s *Settings) initWatcher() {
	wopts := []watcher.Option{
		watcher.WithLogger(s.log),
		watcher.WithDebounce(s.debounce),
	}
	if s.pollInterval > 0 {
		wopts = append(wopts, watcher.WithInterval(s.pollInterval))
	}

	w, err := watcher.New(s.backend, wopts...)
	if err != nil {
		s.log.Warn("live reload disabled: no watcher backend available",
			zap.Error(err))
		return
	}

	s.w = w
	w.OnChange(s.handleEvent)
	w.OnError(s.reportError)
	w.Start()
	s.attachWatch()
}

// attachWatch tries to attach the watch target. Attachment fails
// quietly when the file does not exist yet; Set retries after the
// write that creates it.
func (s *Settings) attachWatch() {
	if s.w == nil || s.watchAttached.Load() {
		return
	}
	if err := s.w.Watch(s.path); err != nil {
		if !errors.Is(err, watcher.ErrPathNotExist) {
			s.log.Warn("watch attach failed",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}
	s.watchAttached.Store(true)
	s.armed.Store(true)
}

// suppress disarms the watch for the duration of an internal
// operation.
func (s *Settings) suppress() {
	s.armed.Store(false)
}

// unsuppress re-arms the watch. Called on every exit path of an
// internal operation. During the post-reload cool-down only the
// re-arm timer may arm the watch.
func (s *Settings) unsuppress() {
	if s.watchAttached.Load() && !s.closed.Load() && !s.cooling.Load() {
		s.armed.Store(true)
	}
}

// Get returns the value at the given dotted path. Missing paths never
// fail: each absent level is materialized as an empty nested
// container, so a read of an unset path yields an empty node. Use Has
// for existence checks. The only errors are persistence failures and
// traversal through a scalar.
func (s *Settings) Get(path string) (any, error) {
	s.suppress()
	defer s.unsuppress()

	var cur any = s.root
	for _, seg := range strings.Split(path, ".") {
		node, ok := cur.(*Storage)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %q", ErrNotMapping, seg, path)
		}
		v, err := node.Get(seg)
		if err != nil {
			return nil, err
		}
		cur = v
	}
	return cur, nil
}

// Set writes value at the given dotted path, creating intermediate
// levels as needed and preserving existing sibling keys. The final
// shape is re-assigned at the first segment so the root document
// observes the change and applies its persistence policy.
//
// There is no rollback: a dotted set that fails midway leaves
// previously materialized levels committed.
func (s *Settings) Set(path string, value any) error {
	s.suppress()
	defer s.unsuppress()
	defer s.attachWatch()

	old, hadOld := s.lookup(path)

	segs := strings.Split(path, ".")

	// Readonly is checked against the pre-operation state of the first
	// segment, before the walk below vivifies it.
	if s.readonly && len(segs) > 1 && s.doc.Has(segs[0]) {
		return fmt.Errorf("%w: %q", ErrReadOnly, segs[0])
	}

	node := s.root
	for _, seg := range segs[:len(segs)-1] {
		v, err := node.Get(seg)
		if err != nil {
			return err
		}
		child, ok := v.(*Storage)
		if !ok {
			return fmt.Errorf("%w: %q in %q", ErrNotMapping, seg, path)
		}
		node = child
	}
	if err := node.Set(segs[len(segs)-1], value); err != nil {
		return err
	}

	// Dotted writes land deep in the tree; re-assigning the first
	// segment at the root gives the document one final write with the
	// complete new shape.
	// The document is addressed directly: the first segment was either
	// fresh or cleared for writing by the check above.
	if len(segs) > 1 {
		if v, ok := s.doc.Get(segs[0]); ok {
			if err := s.doc.Set(segs[0], v); err != nil {
				return err
			}
		}
	}

	if !hadOld {
		old = nil
	}
	s.notifier.NotifySet(path, old, value, changeSourceLocal)
	return nil
}

// Delete removes a top-level key. The path is taken literally; dotted
// navigation is deliberately not performed and deep deletion is out
// of scope. Missing keys are a silent no-op.
func (s *Settings) Delete(path string) error {
	s.suppress()
	defer s.unsuppress()

	old, had := s.doc.Get(path)
	if !had {
		return nil
	}
	if err := s.root.Delete(path); err != nil {
		return err
	}
	s.notifier.NotifyDelete(path, old, changeSourceLocal)
	return nil
}

// Has reports whether the dotted path is set. Unlike Get it never
// materializes missing levels; it short-circuits to false at the
// first absent segment.
func (s *Settings) Has(path string) bool {
	_, ok := s.lookup(path)
	return ok
}

// lookup walks the raw backing without vivification.
func (s *Settings) lookup(path string) (any, bool) {
	var cur any = s.doc
	for _, seg := range strings.Split(path, ".") {
		b, ok := cur.(Backing)
		if !ok {
			if m, isMap := cur.(map[string]any); isMap {
				cur, ok = m[seg]
				if !ok {
					return nil, false
				}
				continue
			}
			return nil, false
		}
		v, ok := b.Get(seg)
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Keys returns the top-level keys in document order.
func (s *Settings) Keys() []string {
	return s.doc.Keys()
}

// Items returns the top-level pairs in document order.
func (s *Settings) Items() []document.Item {
	return s.doc.Items()
}

// Len returns the number of top-level keys.
func (s *Settings) Len() int {
	return s.doc.Len()
}

// Write forces persistence of the backing document regardless of the
// autowrite setting.
func (s *Settings) Write() error {
	s.suppress()
	defer s.unsuppress()
	defer s.attachWatch()
	return s.doc.Write()
}

// Path returns the backing file path, or empty when the store has no
// file of its own.
func (s *Settings) Path() string {
	return s.path
}

// Equal compares the store's contents structurally to another value:
// a map, another store, or a node.
func (s *Settings) Equal(other any) bool {
	return document.Equal(s.doc, unwrapComparand(other))
}

// String renders the store's contents as an ordered pair list.
func (s *Settings) String() string {
	return fmt.Sprintf("Settings(%v)", s.doc)
}

// Subscribe registers an observer for all store changes.
func (s *Settings) Subscribe(observer notify.Observer) *notify.Subscription {
	return s.notifier.Subscribe(observer)
}

// SubscribePath registers an observer for changes at or below the
// given dotted path.
func (s *Settings) SubscribePath(path string, observer notify.Observer) *notify.Subscription {
	return s.notifier.SubscribePath(path, observer)
}

// Errors returns the channel carrying watch failures, most notably
// ErrWatchedFileMissing when the watched file is moved or deleted.
func (s *Settings) Errors() <-chan error {
	return s.errs
}

// Close stops the watcher and cancels any pending re-arm timer. The
// store remains usable for file-less access afterwards.
func (s *Settings) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.armed.Store(false)

	s.rearmMu.Lock()
	if s.rearmTimer != nil {
		s.rearmTimer.Stop()
	}
	s.rearmMu.Unlock()

	s.notifier.Close()
	if s.w != nil {
		return s.w.Close()
	}
	return nil
}

// handleEvent processes change notifications from the watcher
// goroutine. A modification or creation while armed triggers a full
// reload; a move or deletion is terminal for the watch and is
// reported as an error.
func (s *Settings) handleEvent(ev watcher.Event) {
	switch ev.Op {
	case watcher.OpRemove, watcher.OpRename:
		s.watchAttached.Store(false)
		s.armed.Store(false)
		s.reportError(fmt.Errorf("%w: %s", ErrWatchedFileMissing, ev.Path))
		return
	}

	// The CAS is the suppression check: a reload racing an in-flight
	// operation loses and is dropped, relying on the next external
	// change to trigger a fresh reload.
	if !s.armed.CompareAndSwap(true, false) {
		return
	}

	// A failed re-read is not a reload: the file may hold a half-written
	// save. Keep the current data, skip the callbacks, and let the
	// cool-down re-arm for the next change.
	if err := s.doc.Read(); err != nil {
		s.reportError(err)
		s.scheduleRearm()
		return
	}
	if s.onChange != nil {
		s.onChange()
	}
	s.notifier.NotifyReload(ev.Path)
	s.scheduleRearm()
}

// scheduleRearm re-arms the watch after the cool-down, coalescing
// editor save bursts into a single reload. The timer is cancelled by
// Close.
func (s *Settings) scheduleRearm() {
	s.rearmMu.Lock()
	defer s.rearmMu.Unlock()

	if s.rearmTimer != nil {
		s.rearmTimer.Stop()
	}
	s.cooling.Store(true)
	s.rearmTimer = time.AfterFunc(s.rearmDelay, func() {
		s.cooling.Store(false)
		if !s.closed.Load() && s.watchAttached.Load() {
			s.armed.Store(true)
		}
	})
}

func (s *Settings) reportError(err error) {
	s.log.Warn("watch error", zap.Error(err))
	select {
	case s.errs <- err:
	default:
	}
}
