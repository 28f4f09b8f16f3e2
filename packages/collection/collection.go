// Package collection models Postman-style request collections and environments.
package collection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrParse is returned when a collection or environment document is malformed.
	ErrParse = errors.New("parse error")
	// ErrIO is returned when a collection or environment file cannot be read.
	ErrIO = errors.New("io error")
)

// Collection is a named tree of requests and folders.
type Collection struct {
	Info      Info       `json:"info"`
	Items     Items      `json:"item"`
	Variables []Variable `json:"variable,omitempty"`
	Auth      *Auth      `json:"auth,omitempty"`
}

// Info describes the collection.
type Info struct {
	Name        string      `json:"name"`
	Description Description `json:"description,omitempty"`
	Schema      string      `json:"schema,omitempty"`
}

// Description accepts either a plain string or an object with a content field.
type Description string

func (d *Description) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*d = Description(obj.Content)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Description(s)
	return nil
}

// Variable is a key/value pair defined at collection or environment level.
type Variable struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (v *Variable) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key     string          `json:"key"`
		Value   json.RawMessage `json:"value"`
		Type    string          `json:"type"`
		Enabled *bool           `json:"enabled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Key = raw.Key
	v.Type = raw.Type
	v.Enabled = raw.Enabled
	v.Value = scalarString(raw.Value)
	return nil
}

// IsEnabled reports whether the variable should take part in resolution.
func (v Variable) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}

// scalarString renders a JSON scalar as the string a user would have typed.
// Postman exports numbers and booleans as bare JSON values.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Environment is a flat set of variable overrides loaded separately from a collection.
type Environment struct {
	Name   string     `json:"name"`
	Values []Variable `json:"values"`
}

// VariableMap flattens the enabled collection variables.
func (c *Collection) VariableMap() map[string]string {
	return variableMap(c.Variables)
}

// VariableMap flattens the enabled environment values. A nil environment yields
// an empty map.
func (e *Environment) VariableMap() map[string]string {
	if e == nil {
		return map[string]string{}
	}
	return variableMap(e.Values)
}

func variableMap(vars []Variable) map[string]string {
	result := make(map[string]string, len(vars))
	for _, v := range vars {
		if !v.IsEnabled() {
			continue
		}
		result[v.Key] = v.Value
	}
	return result
}

// Location describes where a request sits in the tree.
type Location struct {
	// Folders holds the names of the enclosing folders, outermost first.
	Folders []string
	// Auth is the nearest inherited auth block (folder or collection), or nil.
	Auth *Auth
}

// Requests returns every request leaf in depth-first document order, which
// is also the execution order.
func (c *Collection) Requests() []*RequestItem {
	var out []*RequestItem
	_ = c.Walk(func(_ Location, item *RequestItem) error {
		out = append(out, item)
		return nil
	})
	return out
}

// Walk visits every request leaf in execution order. A non-nil error from fn
// stops the walk and is returned.
func (c *Collection) Walk(fn func(loc Location, item *RequestItem) error) error {
	return walk(c.Items, Location{Auth: c.Auth}, fn)
}

func walk(items Items, loc Location, fn func(Location, *RequestItem) error) error {
	for _, it := range items {
		switch node := it.(type) {
		case *RequestItem:
			if err := fn(loc, node); err != nil {
				return err
			}
		case *Folder:
			child := Location{
				Folders: append(append([]string(nil), loc.Folders...), node.Name),
				Auth:    loc.Auth,
			}
			if node.Auth != nil {
				child.Auth = node.Auth
			}
			if err := walk(node.Items, child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Parse decodes a collection document.
func Parse(data []byte) (*Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: collection: %v", ErrParse, err)
	}
	return &c, nil
}

// ParseEnvironment decodes an environment document.
func ParseEnvironment(data []byte) (*Environment, error) {
	var e Environment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", ErrParse, err)
	}
	return &e, nil
}

// Load reads and decodes a collection file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return Parse(data)
}

// LoadEnvironment reads and decodes an environment file.
func LoadEnvironment(path string) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return ParseEnvironment(data)
}

// stringOrList decodes either "a.b.c" or ["a","b","c"].
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}
