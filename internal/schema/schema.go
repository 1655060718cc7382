// Package schema describes tool input schemas as typed field lists and validates call arguments against them.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind is a JSON-Schema primitive type.
type Kind string

const (
	String  Kind = "string"
	Number  Kind = "number"
	Integer Kind = "integer"
	Boolean Kind = "boolean"
	Object  Kind = "object"
	Array   Kind = "array"
)

// Field describes one named argument.
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string
	Enum        []string
	Default     any
	// Items is the element kind for arrays. Informational only.
	Items Kind
}

// Schema is the input description of a tool: an object with an ordered list of fields.
type Schema struct {
	fields []Field
}

// Option configures a Field.
type Option func(*Field)

// Required marks the field as mandatory.
func Required() Option { return func(f *Field) { f.Required = true } }

// Description sets the human-readable description.
func Description(d string) Option { return func(f *Field) { f.Description = d } }

// Enum lists the accepted values. Enums are advertised to callers but not enforced.
func Enum(values ...string) Option { return func(f *Field) { f.Enum = values } }

// Default advertises the value a tool uses when the field is omitted.
func Default(v any) Option { return func(f *Field) { f.Default = v } }

// Items sets the element kind of an array field.
func Items(k Kind) Option { return func(f *Field) { f.Items = k } }

// Prop builds a Field.
func Prop(name string, kind Kind, opts ...Option) Field {
	f := Field{Name: name, Kind: kind}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// New builds a Schema from fields. It panics on an empty or duplicate field name or an unknown kind;
// schemas are assembled once at startup so this is a programming error.
func New(fields ...Field) Schema {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			panic("schema: field with empty name")
		}
		if _, dup := seen[f.Name]; dup {
			panic(fmt.Sprintf("schema: duplicate field %q", f.Name))
		}
		if !f.Kind.valid() {
			panic(fmt.Sprintf("schema: field %q has unknown kind %q", f.Name, f.Kind))
		}
		seen[f.Name] = struct{}{}
	}
	return Schema{fields: append([]Field(nil), fields...)}
}

// Fields returns the declared fields in order.
func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// RequiredNames returns the names of required fields in declaration order.
func (s Schema) RequiredNames() []string {
	var names []string
	for _, f := range s.fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// MarshalJSON renders the schema as a JSON-Schema object.
func (s Schema) MarshalJSON() ([]byte, error) {
	props := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		p := map[string]any{"type": string(f.Kind)}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			p["enum"] = f.Enum
		}
		if f.Default != nil {
			p["default"] = f.Default
		}
		if f.Kind == Array && f.Items != "" {
			p["items"] = map[string]string{"type": string(f.Items)}
		}
		props[f.Name] = p
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := s.RequiredNames(); len(req) > 0 {
		doc["required"] = req
	}
	return json.Marshal(doc)
}

func (k Kind) valid() bool {
	switch k {
	case String, Number, Integer, Boolean, Object, Array:
		return true
	}
	return false
}

// matches reports whether a decoded JSON value has kind k. No coercion is applied.
func (k Kind) matches(v any) bool {
	switch k {
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		switch v.(type) {
		case float64, json.Number:
			return true
		}
		return false
	case Integer:
		switch n := v.(type) {
		case float64:
			return n == math.Trunc(n) && !math.IsInf(n, 0)
		case json.Number:
			_, err := n.Int64()
			return err == nil
		}
		return false
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Object:
		_, ok := v.(map[string]any)
		return ok
	case Array:
		_, ok := v.([]any)
		return ok
	}
	return false
}

// describe names the JSON type of a decoded value for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
