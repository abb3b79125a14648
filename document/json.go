package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// JSONCodec reads and writes JSON documents while preserving object
// key order. gjson iterates object members in document order; output
// is assembled with sjson, which appends unseen keys in call order.
type JSONCodec struct{}

// Name returns the codec name.
func (JSONCodec) Name() string { return "json" }

// Unmarshal parses raw JSON into an ordered Map.
func (JSONCodec) Unmarshal(data []byte) (*Map, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, ErrNotObject
	}
	return mapFromResult(root), nil
}

// Marshal serializes an ordered Map to pretty-printed JSON.
func (JSONCodec) Marshal(m *Map) ([]byte, error) {
	raw, err := rawObject(m)
	if err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(raw, &pretty.Options{Indent: "  "}), nil
}

func mapFromResult(res gjson.Result) *Map {
	m := NewMap()
	res.ForEach(func(k, v gjson.Result) bool {
		_ = m.Set(k.String(), valueFromResult(v))
		return true
	})
	return m
}

func valueFromResult(res gjson.Result) any {
	switch {
	case res.IsObject():
		return mapFromResult(res)
	case res.IsArray():
		elems := res.Array()
		out := make([]any, 0, len(elems))
		for _, e := range elems {
			out = append(out, valueFromResult(e))
		}
		return out
	default:
		return res.Value()
	}
}

// rawObject builds a compact JSON object one key at a time so that
// insertion order survives.
func rawObject(m *Map) ([]byte, error) {
	out := []byte("{}")
	for _, it := range m.Items() {
		raw, err := rawValue(it.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", it.Key, err)
		}
		out, err = sjson.SetRawBytes(out, escapeJSONPath(it.Key), raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", it.Key, err)
		}
	}
	return out, nil
}

func rawValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case *Map:
		return rawObject(val)
	case map[string]any:
		return rawObject(FromGoMap(val))
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			raw, err := rawValue(e)
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v)
	}
}

// escapeJSONPath protects path syntax characters in a literal key so
// sjson treats the whole key as a single path component.
func escapeJSONPath(key string) string {
	if !strings.ContainsAny(key, `.*?|#@\:`) {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
