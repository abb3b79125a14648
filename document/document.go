// Package document implements ordered key/value documents bound to a
// file path.
//
// A Document preserves key order across read/write round trips, which
// plain Go maps cannot do. JSON documents are parsed with gjson (object
// iteration follows document order) and serialized with sjson so that
// keys are emitted in insertion order. A YAML codec built on the
// yaml.v3 node API is available as an alternative format.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotObject is returned when a document's top-level value is not a
// key/value mapping.
var ErrNotObject = errors.New("document root is not an object")

// Codec converts between a Map and its persisted byte form.
type Codec interface {
	Name() string
	Marshal(m *Map) ([]byte, error)
	Unmarshal(data []byte) (*Map, error)
}

// Document is an ordered key/value document associated with a file.
// When autowrite is on, every top-level mutation is persisted
// immediately. Mutations of nested maps do not persist on their own;
// re-assigning the top-level key does.
type Document struct {
	path      string
	autowrite bool
	codec     Codec
	data      *Map
}

// New opens a JSON document at path, loading it if the file exists.
func New(path string, autowrite bool) (*Document, error) {
	return Open(path, autowrite, JSONCodec{})
}

// NewYAML opens a YAML document at path, loading it if the file exists.
func NewYAML(path string, autowrite bool) (*Document, error) {
	return Open(path, autowrite, YAMLCodec{})
}

// Open opens a document at path using the given codec. A missing file
// is not an error; the document starts empty and the file appears on
// the first write.
func Open(path string, autowrite bool, codec Codec) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	d := &Document{
		path:      abs,
		autowrite: autowrite,
		codec:     codec,
		data:      NewMap(),
	}
	if err := d.Read(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the absolute path of the backing file.
func (d *Document) Path() string {
	return d.path
}

// Autowrite reports whether mutations persist immediately.
func (d *Document) Autowrite() bool {
	return d.autowrite
}

// SetAutowrite toggles immediate persistence. Used to suppress disk
// writes during bulk internal copies.
func (d *Document) SetAutowrite(on bool) {
	d.autowrite = on
}

// Read reloads the document from disk, replacing the in-memory data.
// A missing file resets the document to empty.
func (d *Document) Read() error {
	raw, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.data = NewMap()
			return nil
		}
		return err
	}
	if len(raw) == 0 {
		d.data = NewMap()
		return nil
	}
	m, err := d.codec.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	d.data = m
	return nil
}

// Write persists the document, creating parent directories as needed.
func (d *Document) Write() error {
	raw, err := d.codec.Marshal(d.data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", d.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.path, raw, 0o644)
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	return d.data.Get(key)
}

// Set stores value under key and persists when autowrite is on.
func (d *Document) Set(key string, value any) error {
	if err := d.data.Set(key, value); err != nil {
		return err
	}
	if d.autowrite {
		return d.Write()
	}
	return nil
}

// Delete removes key and persists when autowrite is on. Missing keys
// are a no-op and do not touch the file.
func (d *Document) Delete(key string) error {
	if !d.data.Has(key) {
		return nil
	}
	if err := d.data.Delete(key); err != nil {
		return err
	}
	if d.autowrite {
		return d.Write()
	}
	return nil
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	return d.data.Has(key)
}

// Keys returns the keys in document order.
func (d *Document) Keys() []string {
	return d.data.Keys()
}

// Items returns all pairs in document order.
func (d *Document) Items() []Item {
	return d.data.Items()
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	return d.data.Len()
}

// Equal compares the document's data structurally to another value.
func (d *Document) Equal(other any) bool {
	return Equal(d.data, other)
}

// String renders the document as an ordered pair list.
func (d *Document) String() string {
	return d.data.String()
}
