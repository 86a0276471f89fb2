// Package dsl holds the opaque engine-native documents callers pass through
// unchanged: filter fragments, facet definitions, highlight blocks, raw
// field mappings. The tree is restricted to JSON values and validated once.
package dsl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// MaxDepth bounds the nesting of a document.
const MaxDepth = 32

// Document is an immutable JSON object tree.
type Document struct {
	root map[string]any
}

// Parse decodes a JSON object. Numbers keep their textual form.
func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	if dec.More() {
		return Document{}, errors.New("parse document: trailing data")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Document{}, fmt.Errorf("parse document: expected object, got %T", v)
	}
	return FromMap(m)
}

// FromMap validates and deep-copies m.
func FromMap(m map[string]any) (Document, error) {
	if m == nil {
		return Document{}, nil
	}
	root, err := normalize(m, 0, "")
	if err != nil {
		return Document{}, err
	}
	return Document{root: root.(map[string]any)}, nil
}

// MustFromMap is FromMap for static definitions; it panics on invalid input.
func MustFromMap(m map[string]any) Document {
	d, err := FromMap(m)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether the document is empty.
func (d Document) IsZero() bool { return len(d.root) == 0 }

// Map returns a deep copy of the tree, safe to embed into a larger body.
func (d Document) Map() map[string]any {
	if d.root == nil {
		return nil
	}
	return deepCopy(d.root).(map[string]any)
}

// Keys returns the top-level keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d.root))
	for k := range d.root {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON renders the document with sorted keys.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.root == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(d.root)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return b, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalYAML lets resource files embed engine documents as YAML mappings.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]any
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func normalize(v any, depth int, path string) (any, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("document too deep at %q (max %d)", path, MaxDepth)
	}
	switch t := v.(type) {
	case nil, string, bool, json.Number, float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return t, nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return json.Number(fmt.Sprint(t)), nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			n, err := normalize(child, depth+1, join(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = child
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			n, err := normalize(child, depth+1, path)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, child := range t {
			n, err := normalize(child, depth+1, path)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value %T at %q", v, path)
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return t
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
