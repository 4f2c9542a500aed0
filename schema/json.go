package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type node = orderedmap.OrderedMap[string, any]

// MarshalJSON renders the schema as a JSON Schema object.
//
// Objects always carry "properties" and "required", possibly empty. Arrays
// carry "items" when a nested schema or a primitive item type is known.
// Properties whose schema is null have no JSON form and are skipped. The
// null schema itself marshals to JSON null; tool listings omit it instead.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.IsNull() {
		return []byte("null"), nil
	}
	return json.Marshal(s.toNode())
}

func (s Schema) toNode() *node {
	n := orderedmap.New[string, any]()
	n.Set("type", s.Type.String())
	if s.Description != "" {
		n.Set("description", s.Description)
	}

	switch s.Type {
	case TypeObject:
		props := orderedmap.New[string, any]()
		for _, p := range s.Properties {
			if p.Schema.IsNull() {
				continue
			}
			props.Set(p.Name, p.Schema.toNode())
		}
		n.Set("properties", props)
		required := s.Required
		if required == nil {
			required = []string{}
		}
		n.Set("required", required)
	case TypeArray:
		switch {
		case s.Items != nil && !s.Items.IsNull():
			n.Set("items", s.Items.toNode())
		case s.ItemType != TypeNull:
			items := orderedmap.New[string, any]()
			items.Set("type", s.ItemType.String())
			n.Set("items", items)
		}
	}
	return n
}

// UnmarshalJSON reads a JSON Schema object, keeping property order.
// "integer" is read as number; keywords outside the model are ignored.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*s = Schema{}
		return nil
	}
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	var out Schema
	if v, ok := raw.Get("type"); ok {
		var name string
		if err := json.Unmarshal(v, &name); err != nil {
			return fmt.Errorf("schema: type must be a string: %w", err)
		}
		t, err := ParseType(name)
		if err != nil {
			return err
		}
		out.Type = t
	}
	if v, ok := raw.Get("description"); ok {
		if err := json.Unmarshal(v, &out.Description); err != nil {
			return fmt.Errorf("schema: description must be a string: %w", err)
		}
	}

	if v, ok := raw.Get("properties"); ok {
		if out.Type == TypeNull {
			out.Type = TypeObject
		}
		props := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(v, props); err != nil {
			return fmt.Errorf("schema: properties must be an object: %w", err)
		}
		for el := props.Oldest(); el != nil; el = el.Next() {
			var child Schema
			if err := child.UnmarshalJSON(el.Value); err != nil {
				return fmt.Errorf("schema: property %q: %w", el.Key, err)
			}
			out.Properties = append(out.Properties, Property{Name: el.Key, Schema: child})
		}
	}
	if v, ok := raw.Get("required"); ok {
		if err := json.Unmarshal(v, &out.Required); err != nil {
			return fmt.Errorf("schema: required must be a list of names: %w", err)
		}
		if len(out.Required) == 0 {
			out.Required = nil
		}
	}

	if v, ok := raw.Get("items"); ok {
		var child Schema
		if err := child.UnmarshalJSON(v); err != nil {
			return fmt.Errorf("schema: items: %w", err)
		}
		if child.Type.IsPrimitive() && child.Description == "" {
			out.ItemType = child.Type
		} else if !child.IsNull() {
			out.Items = &child
		}
	}

	*s = out
	return nil
}
