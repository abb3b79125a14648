package settings

import (
	"fmt"

	"github.com/deepforge/settings/document"
)

// Backing is the ordered mapping surface a Storage node manipulates:
// either the root document or a plain ordered map nested inside a
// parent's backing.
type Backing interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Delete(key string) error
	Has(key string) bool
	Keys() []string
	Items() []document.Item
	Len() int
}

// Document is a persistent root backing. The store treats its
// serialized form as opaque.
type Document interface {
	Backing

	// Read reloads the document from its persisted form.
	Read() error

	// Write persists the document.
	Write() error
}

// autowriter is implemented by backings that persist on every
// mutation. The flag is flipped off during bulk internal copies so
// only the net effect hits the disk.
type autowriter interface {
	Autowrite() bool
	SetAutowrite(on bool)
}

// Storage is a view over a backing mapping, not a copy. It holds an
// ownership-free back-reference to the parent's backing plus the key
// this node's value lives under; every mutation re-writes the full
// backing value into the parent so the new shape is observed all the
// way up to the root document.
//
// Node identity is not stable across reads: reading the same nested
// key twice yields two distinct Storage values over equivalent
// backing data.
type Storage struct {
	backing   Backing
	parent    Backing
	parentKey string
	readonly  bool
}

func newStorage(backing Backing, parent Backing, parentKey string, readonly bool) *Storage {
	return &Storage{
		backing:   backing,
		parent:    parent,
		parentKey: parentKey,
		readonly:  readonly,
	}
}

// Get returns the value stored under key.
//
// An absent key is auto-vivified: a fresh empty mapping is inserted
// into the backing and returned as a new child node. A present plain
// mapping is wrapped copy-on-read: an equivalent copy is built, the
// copy replaces the stored value, and a node over the copy is
// returned. Scalars are returned directly.
func (s *Storage) Get(key string) (any, error) {
	v, ok := s.backing.Get(key)
	if !ok {
		child := document.NewMap()
		if err := s.backing.Set(key, child); err != nil {
			return nil, err
		}
		return newStorage(child, s.backing, key, s.readonly), nil
	}

	switch val := v.(type) {
	case *document.Map:
		cp, err := s.copyOnRead(key, val)
		if err != nil {
			return nil, err
		}
		return newStorage(cp, s.backing, key, s.readonly), nil
	case map[string]any:
		cp, err := s.copyOnRead(key, document.FromGoMap(val))
		if err != nil {
			return nil, err
		}
		return newStorage(cp, s.backing, key, s.readonly), nil
	default:
		return v, nil
	}
}

// copyOnRead builds an equivalent copy of src through a child node so
// the parent's on-write side effects fire for the copy, with
// persistence suppressed until the single commit at the end.
func (s *Storage) copyOnRead(key string, src *document.Map) (*document.Map, error) {
	aw, hasAW := s.backing.(autowriter)
	restore := hasAW && aw.Autowrite()
	if restore {
		aw.SetAutowrite(false)
	}

	cp := document.NewMap()
	node := newStorage(cp, s.backing, key, s.readonly)
	var copyErr error
	for _, it := range src.Items() {
		if copyErr = node.Set(it.Key, it.Value); copyErr != nil {
			break
		}
	}

	if restore {
		aw.SetAutowrite(true)
	}
	if copyErr != nil {
		return nil, copyErr
	}

	if err := s.backing.Set(key, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Set writes backing[key] = value and propagates the whole backing
// mapping into the parent, so every ancestor observes the new shape.
// The root document reacts to that final write with its own
// persistence policy.
func (s *Storage) Set(key string, value any) error {
	if s.readonly && s.backing.Has(key) {
		return fmt.Errorf("%w: %q", ErrReadOnly, key)
	}
	if err := s.backing.Set(key, normalizeValue(value)); err != nil {
		return err
	}
	if s.parent != nil && s.parentKey != "" {
		return s.parent.Set(s.parentKey, s.backing)
	}
	return nil
}

// Delete removes key from the backing in place. Absent keys are a
// no-op. Deletion is not propagated; the backing is already shared by
// reference with the parent's stored value.
func (s *Storage) Delete(key string) error {
	if !s.backing.Has(key) {
		return nil
	}
	return s.backing.Delete(key)
}

// Has reports whether key is present. Unlike Get it never vivifies.
func (s *Storage) Has(key string) bool {
	return s.backing.Has(key)
}

// Keys returns the backing keys in order.
func (s *Storage) Keys() []string {
	return s.backing.Keys()
}

// Items returns the backing pairs in order.
func (s *Storage) Items() []document.Item {
	return s.backing.Items()
}

// Len returns the number of keys in the backing.
func (s *Storage) Len() int {
	return s.backing.Len()
}

// Equal compares the backing structurally to another value.
func (s *Storage) Equal(other any) bool {
	return document.Equal(s.backing, unwrapComparand(other))
}

// String renders the node as an ordered pair list.
func (s *Storage) String() string {
	return fmt.Sprintf("%v", s.backing)
}

// normalizeValue converts caller-supplied values into storable form:
// plain Go maps become ordered maps, nodes collapse to their backing.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case *Storage:
		return val.backing
	case map[string]any:
		return document.FromGoMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// unwrapComparand strips store wrappers before structural comparison.
func unwrapComparand(v any) any {
	switch val := v.(type) {
	case *Settings:
		return val.doc
	case *Storage:
		return val.backing
	default:
		return v
	}
}
