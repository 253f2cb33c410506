package types

import (
	"encoding/json"
	"fmt"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	SchemaTypeString  SchemaType = "string"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
)

// StringFormat represents common string format constraints.
type StringFormat string

const (
	FormatURI StringFormat = "uri"
)

// JSONSchema is the subset of JSON Schema used to describe tool parameters.
type JSONSchema struct {
	Description string     `json:"description,omitempty"`
	Type        SchemaType `json:"type,omitempty"`

	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
	// Additional describes values of free-form object keys (field -> selector maps).
	Additional *JSONSchema `json:"additionalProperties,omitempty"`

	Items *JSONSchema `json:"items,omitempty"`

	Enum    []any        `json:"enum,omitempty"`
	Format  StringFormat `json:"format,omitempty"`
	Minimum *float64     `json:"minimum,omitempty"`
	Default any          `json:"default,omitempty"`
}

// NewObjectSchema creates a new object schema.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{
		Type:       SchemaTypeObject,
		Properties: make(map[string]*JSONSchema),
	}
}

// NewMapSchema creates an object schema whose arbitrary keys map to values.
func NewMapSchema(values *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: SchemaTypeObject, Additional: values}
}

// NewArraySchema creates a new array schema.
func NewArraySchema(items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: SchemaTypeArray, Items: items}
}

// NewStringSchema creates a new string schema.
func NewStringSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeString}
}

// NewIntegerSchema creates a new integer schema.
func NewIntegerSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeInteger}
}

// NewBooleanSchema creates a new boolean schema.
func NewBooleanSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeBoolean}
}

// NewEnumSchema creates a string enum schema.
func NewEnumSchema(values ...string) *JSONSchema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &JSONSchema{Type: SchemaTypeString, Enum: enum}
}

// AddProperty adds a property to an object schema.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired adds required field names.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	s.Required = append(s.Required, names...)
	return s
}

// WithDescription sets the description.
func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

// WithFormat sets a string format constraint.
func (s *JSONSchema) WithFormat(format StringFormat) *JSONSchema {
	s.Format = format
	return s
}

// WithDefault sets the default value.
func (s *JSONSchema) WithDefault(v any) *JSONSchema {
	s.Default = v
	return s
}

// WithMinimum sets the numeric lower bound.
func (s *JSONSchema) WithMinimum(min float64) *JSONSchema {
	s.Minimum = &min
	return s
}

// ToJSON serializes the schema to JSON.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// MustJSON serializes the schema and panics on failure. Schemas built from
// the constructors above always marshal.
func (s *JSONSchema) MustJSON() json.RawMessage {
	data, err := s.ToJSON()
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	return data
}
