// Package schema describes the arguments a tool accepts.
//
// A Schema is a small, closed subset of JSON Schema: the six primitive kinds
// (null, number, string, boolean, array, object), an optional description,
// ordered object properties with a required list, and array items given
// either as a nested schema or as a bare primitive type. It marshals to the
// JSON Schema shape MCP clients expect in a tool's "inputSchema".
//
// The zero Schema has TypeNull and stands for "no schema". A tool whose input
// schema is null is listed without an "inputSchema" member at all; callers
// check IsNull before embedding a Schema.
//
//	in := schema.Object([]schema.Property{
//		schema.Prop("a", schema.Number("first addend")),
//		schema.Prop("b", schema.Number("second addend")),
//	}, "a", "b")
package schema

import "fmt"

// Type is the kind of value a schema node accepts.
type Type int

const (
	// TypeNull is the "no schema" sentinel. It is the zero value.
	TypeNull Type = iota
	TypeNumber
	TypeString
	TypeBoolean
	TypeArray
	TypeObject
)

var typeNames = [...]string{
	TypeNull:    "null",
	TypeNumber:  "number",
	TypeString:  "string",
	TypeBoolean: "boolean",
	TypeArray:   "array",
	TypeObject:  "object",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// IsPrimitive reports whether t is a number, string or boolean.
func (t Type) IsPrimitive() bool {
	return t == TypeNumber || t == TypeString || t == TypeBoolean
}

// ParseType maps a JSON Schema type name onto a Type. "integer" is folded
// into TypeNumber.
func ParseType(name string) (Type, error) {
	switch name {
	case "null", "":
		return TypeNull, nil
	case "number", "integer":
		return TypeNumber, nil
	case "string":
		return TypeString, nil
	case "boolean":
		return TypeBoolean, nil
	case "array":
		return TypeArray, nil
	case "object":
		return TypeObject, nil
	}
	return TypeNull, fmt.Errorf("schema: unsupported type %q", name)
}

// Schema is one node of a tool input schema.
type Schema struct {
	Type        Type
	Description string

	// Properties and Required apply to TypeObject. Properties keep the order
	// in which they were declared.
	Properties []Property
	Required   []string

	// Items and ItemType apply to TypeArray. Items wins when both are set.
	Items    *Schema
	ItemType Type
}

// Property is a named child of an object schema.
type Property struct {
	Name   string
	Schema Schema
}

// Leaf returns a schema of the given type with an optional description.
func Leaf(t Type, description string) Schema {
	return Schema{Type: t, Description: description}
}

func Number(description string) Schema  { return Leaf(TypeNumber, description) }
func String(description string) Schema  { return Leaf(TypeString, description) }
func Boolean(description string) Schema { return Leaf(TypeBoolean, description) }

// Prop pairs a property name with its schema.
func Prop(name string, s Schema) Property {
	return Property{Name: name, Schema: s}
}

// Object returns an object schema with the given properties, in order, and
// required property names.
func Object(props []Property, required ...string) Schema {
	s := Schema{Type: TypeObject}
	if len(props) > 0 {
		s.Properties = append([]Property(nil), props...)
	}
	if len(required) > 0 {
		s.Required = append([]string(nil), required...)
	}
	return s
}

// ArrayOf returns an array schema whose items are described by items.
func ArrayOf(items Schema) Schema {
	return Schema{Type: TypeArray, Items: &items}
}

// ArrayOfType returns an array schema whose items are of a primitive type.
func ArrayOfType(t Type) Schema {
	return Schema{Type: TypeArray, ItemType: t}
}

// WithDescription returns a copy of s carrying the description.
func (s Schema) WithDescription(description string) Schema {
	s.Description = description
	return s
}

// IsNull reports whether s is the "no schema" sentinel.
func (s Schema) IsNull() bool {
	return s.Type == TypeNull
}

// Property returns the named property of an object schema.
func (s Schema) Property(name string) (Schema, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return Schema{}, false
}
