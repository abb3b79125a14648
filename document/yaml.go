package document

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLCodec reads and writes YAML documents. The yaml.v3 node API is
// used instead of plain map unmarshaling because mapping nodes keep
// their source order.
type YAMLCodec struct{}

// Name returns the codec name.
func (YAMLCodec) Name() string { return "yaml" }

// Unmarshal parses raw YAML into an ordered Map.
func (YAMLCodec) Unmarshal(data []byte) (*Map, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return NewMap(), nil
	}
	return mapFromYAMLNode(root.Content[0])
}

// Marshal serializes an ordered Map to YAML.
func (YAMLCodec) Marshal(m *Map) ([]byte, error) {
	node, err := yamlNodeFromValue(m)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

func mapFromYAMLNode(n *yaml.Node) (*Map, error) {
	if n.Kind == yaml.AliasNode {
		return mapFromYAMLNode(n.Alias)
	}
	if n.Kind != yaml.MappingNode {
		return nil, ErrNotObject
	}
	m := NewMap()
	for i := 0; i+1 < len(n.Content); i += 2 {
		v, err := valueFromYAMLNode(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		_ = m.Set(n.Content[i].Value, v)
	}
	return m, nil
}

func valueFromYAMLNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		return mapFromYAMLNode(n)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := valueFromYAMLNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case yaml.AliasNode:
		return valueFromYAMLNode(n.Alias)
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d", n.Kind)
	}
}

func yamlNodeFromValue(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case *Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, it := range val.Items() {
			kn := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: it.Key}
			vn, err := yamlNodeFromValue(it.Value)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, kn, vn)
		}
		return n, nil
	case map[string]any:
		return yamlNodeFromValue(FromGoMap(val))
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range val {
			en, err := yamlNodeFromValue(e)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, en)
		}
		return n, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return nil, err
		}
		return n, nil
	}
}
