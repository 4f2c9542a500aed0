package schema

import (
	"github.com/invopop/jsonschema"
)

// Reflect derives an object schema from the Go type T, normally a struct
// whose fields carry json and jsonschema tags. Types that do not reflect to
// an object yield an empty object schema.
func Reflect[T any]() Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put struct at root
	}
	s := FromJSONSchema(r.Reflect(new(T)))
	if s.Type != TypeObject {
		return Object(nil)
	}
	return s
}

// FromJSONSchema converts a reflected JSON Schema into the schema model.
// Keywords the model has no room for (formats, enums, bounds) are dropped and
// nodes without a recognizable type become null.
func FromJSONSchema(js *jsonschema.Schema) Schema {
	if js == nil {
		return Schema{}
	}
	t, err := ParseType(js.Type)
	if err != nil {
		return Schema{}
	}
	s := Schema{Type: t, Description: js.Description}
	if t == TypeNull && js.Properties != nil && js.Properties.Len() > 0 {
		s.Type = TypeObject
	}

	switch s.Type {
	case TypeObject:
		if js.Properties != nil {
			for el := js.Properties.Oldest(); el != nil; el = el.Next() {
				child := FromJSONSchema(el.Value)
				if child.IsNull() {
					continue
				}
				s.Properties = append(s.Properties, Property{Name: el.Key, Schema: child})
			}
		}
		for _, name := range js.Required {
			if _, ok := s.Property(name); ok {
				s.Required = append(s.Required, name)
			}
		}
	case TypeArray:
		items := FromJSONSchema(js.Items)
		switch {
		case items.Type.IsPrimitive() && items.Description == "":
			s.ItemType = items.Type
		case !items.IsNull():
			s.Items = &items
		}
	}
	return s
}
