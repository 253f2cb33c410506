package browser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Locator binds an output field to a selector.
type Locator struct {
	Field    string `json:"field" yaml:"field"`
	Selector string `json:"selector" yaml:"selector"`
}

// LocatorMap is an ordered field -> selector mapping. The first entry is the
// reference locator whose match count sets the number of records. In JSON and
// YAML it is written as an object and document order is preserved.
type LocatorMap []Locator

// Record holds one extracted value per LocatorMap field.
type Record map[string]string

// Locators builds a LocatorMap from alternating field, selector arguments.
// It panics on an odd argument count.
func Locators(pairs ...string) LocatorMap {
	if len(pairs)%2 != 0 {
		panic("browser.Locators: odd number of arguments")
	}
	m := make(LocatorMap, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		m = append(m, Locator{Field: pairs[i], Selector: pairs[i+1]})
	}
	return m
}

// Fields returns the field names in declaration order.
func (m LocatorMap) Fields() []string {
	out := make([]string, len(m))
	for i, l := range m {
		out[i] = l.Field
	}
	return out
}

// Validate rejects empty fields or selectors and duplicate field names.
func (m LocatorMap) Validate() error {
	seen := make(map[string]struct{}, len(m))
	for i, l := range m {
		if l.Field == "" {
			return fmt.Errorf("%w: entry %d has an empty field name", ErrInvalidLocator, i)
		}
		if l.Selector == "" {
			return fmt.Errorf("%w: field %q has an empty selector", ErrInvalidLocator, l.Field)
		}
		if _, dup := seen[l.Field]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateField, l.Field)
		}
		seen[l.Field] = struct{}{}
	}
	return nil
}

// MarshalJSON writes the map as a JSON object in declaration order.
func (m LocatorMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, l := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(l.Field)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(l.Selector)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order.
func (m *LocatorMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("locator map: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("locator map: expected object, got %v", tok)
	}

	out := LocatorMap{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("locator map: %w", err)
		}
		key, _ := keyTok.(string)
		var sel string
		if err := dec.Decode(&sel); err != nil {
			return fmt.Errorf("locator map: field %q: %w", key, err)
		}
		out = append(out, Locator{Field: key, Selector: sel})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("locator map: %w", err)
	}
	*m = out
	return out.Validate()
}

// MarshalYAML writes the map as an ordered YAML mapping.
func (m LocatorMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, l := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: l.Field},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: l.Selector},
		)
	}
	return node, nil
}

// UnmarshalYAML reads a YAML mapping keeping key order.
func (m *LocatorMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("locator map: line %d: expected mapping", value.Line)
	}
	out := make(LocatorMap, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("locator map: line %d: selector for %q must be a string", v.Line, k.Value)
		}
		out = append(out, Locator{Field: k.Value, Selector: v.Value})
	}
	*m = out
	return out.Validate()
}
