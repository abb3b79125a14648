// Package notify provides change notification for configuration
// stores.
//
// Components subscribe to a Notifier and receive a callback when a
// value is set or deleted, or when the whole store is reloaded from
// disk. Delivery is synchronous on the goroutine performing the change.
package notify

import (
	"strings"
	"sync"
)

// ChangeType represents the type of store change.
type ChangeType int

const (
	// ChangeSet indicates a value was set or updated.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates a value was deleted.
	ChangeDelete

	// ChangeReload indicates the whole store was reloaded from disk.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change represents a store change event.
type Change struct {
	// Path is the dotted path of the changed value. Empty for reloads.
	Path string

	// Type is the type of change.
	Type ChangeType

	// OldValue is the previous value (may be nil).
	OldValue any

	// NewValue is the new value (nil for deletes).
	NewValue any

	// Source identifies where the change came from, e.g. "local" or
	// the path of the reloaded file.
	Source string
}

// Observer is called when a change occurs.
type Observer func(change Change)

// Subscription represents an active observer registration.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier manages change subscriptions.
type Notifier struct {
	mu sync.RWMutex

	// Observers receiving every change.
	global map[uint64]Observer

	// Observers keyed by subscribed path.
	byPath map[string]map[uint64]Observer

	nextID uint64
	closed bool
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{
		global: make(map[uint64]Observer),
		byPath: make(map[string]map[uint64]Observer),
	}
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.global[id] = observer

	return &Subscription{id: id, notifier: n}
}

// SubscribePath registers an observer for changes at or below the
// given dotted path: subscribing to "db" also receives changes to
// "db.host". Reload changes are delivered to every path subscriber.
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	if n.byPath[path] == nil {
		n.byPath[path] = make(map[uint64]Observer)
	}
	n.byPath[path][id] = observer

	return &Subscription{id: id, notifier: n}
}

// Notify delivers a change to all matching observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}

	observers := make([]Observer, 0, len(n.global))
	for _, obs := range n.global {
		observers = append(observers, obs)
	}
	for path, pathObs := range n.byPath {
		if pathMatches(path, change) {
			for _, obs := range pathObs {
				observers = append(observers, obs)
			}
		}
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

// NotifySet is a convenience method for set changes.
func (n *Notifier) NotifySet(path string, oldValue, newValue any, source string) {
	n.Notify(Change{
		Path:     path,
		Type:     ChangeSet,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// NotifyDelete is a convenience method for delete changes.
func (n *Notifier) NotifyDelete(path string, oldValue any, source string) {
	n.Notify(Change{
		Path:     path,
		Type:     ChangeDelete,
		OldValue: oldValue,
		Source:   source,
	})
}

// NotifyReload is a convenience method for reload events.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{
		Type:   ChangeReload,
		Source: source,
	})
}

// Close shuts down the notifier. Safe to call multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.global, id)
	for path, observers := range n.byPath {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.byPath, path)
		}
	}
}

// pathMatches reports whether a subscription path should receive the
// change. Reloads match everything; otherwise the subscription must
// equal the change path or be one of its ancestors.
func pathMatches(sub string, change Change) bool {
	if change.Type == ChangeReload {
		return true
	}
	return change.Path == sub || strings.HasPrefix(change.Path, sub+".")
}
