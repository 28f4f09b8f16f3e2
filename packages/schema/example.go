package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Example is an observed JSON payload kept verbatim so key order survives
// both JSON and YAML encoding.
type Example struct {
	value gjson.Result
}

// ParseExample returns the payload as an example when it is valid JSON with a
// JSON content type, and nil otherwise.
func ParseExample(body, contentType string) *Example {
	if !IsJSON(contentType) || !gjson.Valid(body) {
		return nil
	}
	return &Example{value: gjson.Parse(body)}
}

// Value returns the example decoded into plain Go values.
func (e *Example) Value() any {
	return e.value.Value()
}

func (e *Example) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(e.value.Raw)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Example) MarshalYAML() (any, error) {
	return exampleNode(e.value), nil
}

func exampleNode(r gjson.Result) *yaml.Node {
	switch r.Type {
	case gjson.Null:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case gjson.False:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "false"}
	case gjson.True:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"}
	case gjson.Number:
		tag := "!!int"
		if strings.ContainsAny(r.Raw, ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: r.Raw}
	case gjson.String:
		return strNode(r.String())
	}

	if r.IsObject() {
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		r.ForEach(func(key, value gjson.Result) bool {
			node.Content = append(node.Content, strNode(key.String()), exampleNode(value))
			return true
		})
		if len(node.Content) == 0 {
			node.Style = yaml.FlowStyle
		}
		return node
	}

	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	r.ForEach(func(_, value gjson.Result) bool {
		node.Content = append(node.Content, exampleNode(value))
		return true
	})
	if len(node.Content) == 0 {
		node.Style = yaml.FlowStyle
	}
	return node
}

// Check validates a JSON document against the schema. It is used to confirm
// that an inferred schema accepts the payload it was inferred from.
func (s *Schema) Check(document []byte) error {
	schemaJSON, err := s.MarshalJSON()
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(problems, "; "))
}
