package document

import (
	"fmt"
	"sort"
	"strings"
)

// Item is a single key/value pair in document order.
type Item struct {
	Key   string
	Value any
}

// Map is a string-keyed mapping that preserves insertion order.
// It is the plain nested-mapping type stored inside documents; the
// root of a persisted document is a Map owned by a Document.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap creates an empty ordered map.
func NewMap() *Map {
	return &Map{
		values: make(map[string]any),
	}
}

// FromGoMap creates a Map from a plain Go map.
// Keys are sorted to give a deterministic order, since Go map
// iteration order is random.
func FromGoMap(src map[string]any) *Map {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := NewMap()
	for _, k := range keys {
		v := src[k]
		if nested, ok := v.(map[string]any); ok {
			m.Set(k, FromGoMap(nested))
			continue
		}
		m.Set(k, v)
	}
	return m
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key. Existing keys keep their position;
// new keys are appended. The error return is always nil and exists
// to satisfy the shared backing contract with Document.
func (m *Map) Set(key string, value any) error {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return nil
}

// Delete removes key. Missing keys are a no-op.
func (m *Map) Delete(key string) error {
	if _, ok := m.values[key]; !ok {
		return nil
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return nil
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Items returns all pairs in insertion order.
func (m *Map) Items() []Item {
	out := make([]Item, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Item{Key: k, Value: m.values[k]})
	}
	return out
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return len(m.keys)
}

// Clone returns a shallow copy: the pair list is copied, nested
// values are shared by reference.
func (m *Map) Clone() *Map {
	out := NewMap()
	for _, k := range m.keys {
		_ = out.Set(k, m.values[k])
	}
	return out
}

// Equal compares the map structurally to another value.
// Accepted comparands: *Map, map[string]any, *Document.
func (m *Map) Equal(other any) bool {
	return Equal(m, other)
}

// String renders the map as an ordered pair list rather than nested
// object syntax, so values containing back-references terminate.
func (m *Map) String() string {
	return m.render(make(map[*Map]bool))
}

func (m *Map) render(seen map[*Map]bool) string {
	if seen[m] {
		return "[...]"
	}
	seen[m] = true
	defer delete(seen, m)

	parts := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		v := m.values[k]
		if nested, ok := v.(*Map); ok {
			parts = append(parts, fmt.Sprintf("(%s, %s)", k, nested.render(seen)))
			continue
		}
		parts = append(parts, fmt.Sprintf("(%s, %v)", k, v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Equal structurally compares two document values. Numeric values
// compare by magnitude regardless of Go type, so a value written as
// int survives a JSON round trip (which reads back float64).
func Equal(a, b any) bool {
	a = unwrapValue(a)
	b = unwrapValue(b)

	am, aIsMap := asPairs(a)
	bm, bIsMap := asPairs(b)
	if aIsMap != bIsMap {
		return false
	}
	if aIsMap {
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}

	as, aIsSlice := a.([]any)
	bs, bIsSlice := b.([]any)
	if aIsSlice != bIsSlice {
		return false
	}
	if aIsSlice {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}

	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}

	return a == b
}

// unwrapValue strips document wrappers down to the underlying value.
// Any type exposing ordered pairs compares as a mapping, so custom
// document implementations participate in structural equality.
func unwrapValue(v any) any {
	switch val := v.(type) {
	case *Document:
		return val.data
	case *Map:
		return val
	case interface{ Items() []Item }:
		m := NewMap()
		for _, it := range val.Items() {
			_ = m.Set(it.Key, it.Value)
		}
		return m
	default:
		return v
	}
}

// asPairs views a mapping value as key -> value, regardless of
// whether it is a *Map or a plain Go map.
func asPairs(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case *Map:
		return val.values, true
	case map[string]any:
		return val, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
