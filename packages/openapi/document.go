package openapi

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/livespec/packages/schema"
)

// Version is the OpenAPI version written into synthesized documents.
const Version = "3.0.0"

// Document is a synthesized OpenAPI document. Schemas are always inlined, so
// there is no components section.
type Document struct {
	OpenAPI string   `json:"openapi" yaml:"openapi"`
	Info    Info     `json:"info" yaml:"info"`
	Servers []Server `json:"servers" yaml:"servers"`
	Paths   *Paths   `json:"paths" yaml:"paths"`
}

type Info struct {
	Title       string `json:"title" yaml:"title"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Server struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Methods lists the lower-case HTTP methods that have an operation slot.
var Methods = []string{"get", "post", "put", "delete", "patch"}

// IsOperationMethod reports whether method is one of Methods.
func IsOperationMethod(method string) bool {
	for _, m := range Methods {
		if m == method {
			return true
		}
	}
	return false
}

// PathItem holds one operation slot per representable method.
type PathItem struct {
	Get    *Operation `json:"get,omitempty" yaml:"get,omitempty"`
	Post   *Operation `json:"post,omitempty" yaml:"post,omitempty"`
	Put    *Operation `json:"put,omitempty" yaml:"put,omitempty"`
	Delete *Operation `json:"delete,omitempty" yaml:"delete,omitempty"`
	Patch  *Operation `json:"patch,omitempty" yaml:"patch,omitempty"`
}

// Operation returns the operation stored for a lower-case method name.
func (p *PathItem) Operation(method string) *Operation {
	if slot := p.slot(method); slot != nil {
		return *slot
	}
	return nil
}

// SetOperation stores op under a lower-case method name. It reports false for
// methods that have no slot.
func (p *PathItem) SetOperation(method string, op *Operation) bool {
	slot := p.slot(method)
	if slot == nil {
		return false
	}
	*slot = op
	return true
}

func (p *PathItem) slot(method string) **Operation {
	switch method {
	case "get":
		return &p.Get
	case "post":
		return &p.Post
	case "put":
		return &p.Put
	case "delete":
		return &p.Delete
	case "patch":
		return &p.Patch
	}
	return nil
}

type Operation struct {
	Summary     string       `json:"summary,omitempty" yaml:"summary,omitempty"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Parameters  []Parameter  `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   *Responses   `json:"responses" yaml:"responses"`
}

type Parameter struct {
	Name     string         `json:"name" yaml:"name"`
	In       string         `json:"in" yaml:"in"`
	Required bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Schema   *schema.Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

type RequestBody struct {
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Content     map[string]*MediaType `json:"content" yaml:"content"`
	Required    bool                  `json:"required,omitempty" yaml:"required,omitempty"`
}

type Response struct {
	Description string                `json:"description" yaml:"description"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

type MediaType struct {
	Schema  *schema.Schema  `json:"schema,omitempty" yaml:"schema,omitempty"`
	Example *schema.Example `json:"example,omitempty" yaml:"example,omitempty"`
}

// orderedMap is an insertion-ordered string-keyed map that encodes its keys
// in insertion order for both JSON and YAML.
type orderedMap[V any] struct {
	keys   []string
	values map[string]V
}

func (m *orderedMap[V]) set(key string, v V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *orderedMap[V]) get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedMap[V]) marshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *orderedMap[V]) marshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		val := &yaml.Node{}
		if err := val.Encode(m.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			val,
		)
	}
	if len(node.Content) == 0 {
		node.Style = yaml.FlowStyle
	}
	return node, nil
}

// Paths maps path templates to path items in first-seen order.
type Paths struct {
	m orderedMap[*PathItem]
}

func NewPaths() *Paths {
	return &Paths{}
}

// Item returns the path item for template, creating it if needed.
func (p *Paths) Item(template string) *PathItem {
	if item, ok := p.m.get(template); ok {
		return item
	}
	item := &PathItem{}
	p.m.set(template, item)
	return item
}

// Get returns the path item for template without creating it.
func (p *Paths) Get(template string) (*PathItem, bool) {
	return p.m.get(template)
}

// Templates returns the path templates in first-seen order.
func (p *Paths) Templates() []string {
	return append([]string(nil), p.m.keys...)
}

func (p *Paths) Len() int {
	return len(p.m.keys)
}

func (p *Paths) MarshalJSON() ([]byte, error) { return p.m.marshalJSON() }
func (p *Paths) MarshalYAML() (any, error)    { return p.m.marshalYAML() }

// Responses maps status codes (as strings) to responses in insertion order.
type Responses struct {
	m orderedMap[*Response]
}

func NewResponses() *Responses {
	return &Responses{}
}

func (r *Responses) Set(status string, resp *Response) {
	r.m.set(status, resp)
}

func (r *Responses) Get(status string) (*Response, bool) {
	return r.m.get(status)
}

func (r *Responses) Codes() []string {
	return append([]string(nil), r.m.keys...)
}

func (r *Responses) MarshalJSON() ([]byte, error) { return r.m.marshalJSON() }
func (r *Responses) MarshalYAML() (any, error)    { return r.m.marshalYAML() }
