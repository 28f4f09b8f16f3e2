// Package schema infers structural schemas from observed JSON payloads.
//
// Inference looks at the shape of one value only: objects become object
// schemas with one property per key in document order, arrays are described
// by their first element, and scalars map to string, number, boolean or null.
// There is no integer/float split and no format detection.
package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the JSON type a schema describes.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Schema is an inferred schema node. Properties is set only for objects and
// Items only for non-empty arrays.
type Schema struct {
	Type       Kind
	Properties *Properties
	Items      *Schema
}

// Primitive returns a schema for a scalar kind.
func Primitive(k Kind) *Schema {
	return &Schema{Type: k}
}

// String is the fallback schema for non-JSON or unparseable payloads.
func String() *Schema {
	return Primitive(KindString)
}

// Object returns an empty object schema ready for properties.
func Object() *Schema {
	return &Schema{Type: KindObject, Properties: NewProperties()}
}

// Array returns an array schema. A nil element means the array was empty and
// the element type is unknown.
func Array(items *Schema) *Schema {
	return &Schema{Type: KindArray, Items: items}
}

// Properties is an insertion-ordered map of property schemas.
type Properties struct {
	keys   []string
	values map[string]*Schema
}

func NewProperties() *Properties {
	return &Properties{values: make(map[string]*Schema)}
}

// Set adds or replaces a property. A replaced property keeps its original
// position.
func (p *Properties) Set(name string, s *Schema) {
	if _, ok := p.values[name]; !ok {
		p.keys = append(p.keys, name)
	}
	p.values[name] = s
}

func (p *Properties) Get(name string) (*Schema, bool) {
	if p == nil {
		return nil, false
	}
	s, ok := p.values[name]
	return s, ok
}

// Keys returns the property names in insertion order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// IsJSON reports whether a media type denotes JSON, including structured
// suffixes such as application/problem+json.
func IsJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}

// MarshalJSON writes the schema with properties in insertion order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Schema) writeJSON(buf *bytes.Buffer) error {
	buf.WriteString(`{"type":`)
	t, err := json.Marshal(string(s.Type))
	if err != nil {
		return err
	}
	buf.Write(t)

	if s.Type == KindObject {
		buf.WriteString(`,"properties":{`)
		for i, k := range s.Properties.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			child, _ := s.Properties.Get(k)
			if err := child.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}

	if s.Items != nil {
		buf.WriteString(`,"items":`)
		if err := s.Items.writeJSON(buf); err != nil {
			return err
		}
	}

	buf.WriteByte('}')
	return nil
}

// MarshalYAML builds a mapping node so property order survives encoding.
func (s *Schema) MarshalYAML() (any, error) {
	return s.yamlNode(), nil
}

func (s *Schema) yamlNode() *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	node.Content = append(node.Content, strNode("type"), strNode(string(s.Type)))

	if s.Type == KindObject {
		props := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range s.Properties.Keys() {
			child, _ := s.Properties.Get(k)
			props.Content = append(props.Content, strNode(k), child.yamlNode())
		}
		if len(props.Content) == 0 {
			props.Style = yaml.FlowStyle
		}
		node.Content = append(node.Content, strNode("properties"), props)
	}

	if s.Items != nil {
		node.Content = append(node.Content, strNode("items"), s.Items.yamlNode())
	}
	return node
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
