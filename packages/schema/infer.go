package schema

import (
	"github.com/tidwall/gjson"
)

// Infer derives a schema from a payload. Non-JSON content types and bodies
// that fail to parse yield a string schema; inference never fails.
func Infer(body, contentType string) *Schema {
	if !IsJSON(contentType) {
		return String()
	}
	if !gjson.Valid(body) {
		return String()
	}
	return FromResult(gjson.Parse(body))
}

// FromResult infers a schema from an already parsed gjson value.
func FromResult(r gjson.Result) *Schema {
	switch r.Type {
	case gjson.Null:
		return Primitive(KindNull)
	case gjson.False, gjson.True:
		return Primitive(KindBoolean)
	case gjson.Number:
		return Primitive(KindNumber)
	case gjson.String:
		return Primitive(KindString)
	}

	if r.IsObject() {
		obj := Object()
		r.ForEach(func(key, value gjson.Result) bool {
			obj.Properties.Set(key.String(), FromResult(value))
			return true
		})
		return obj
	}

	if r.IsArray() {
		var first *Schema
		r.ForEach(func(_, value gjson.Result) bool {
			first = FromResult(value)
			return false
		})
		return Array(first)
	}

	return String()
}
