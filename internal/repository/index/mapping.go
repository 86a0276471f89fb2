package index

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/dialect"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
)

// DefaultDateFormat accepts ISO-8601 strings and epoch milliseconds.
const DefaultDateFormat = "strict_date_optional_time||epoch_millis"

// Mapping is the engine field mapping derived from one or more resource schemas.
type Mapping struct {
	properties map[string]any
	variant    dialect.Variant
}

// Properties returns the top-level field mappings.
func (m Mapping) Properties() map[string]any { return m.properties }

// Body returns the mappings section of an index in the variant's shape.
func (m Mapping) Body() map[string]any { return m.variant.WrapMapping(m.properties) }

// JSON renders the mappings section. Keys are sorted, so equal schemas
// always render identical bytes.
func (m Mapping) JSON() ([]byte, error) {
	b, err := json.Marshal(m.Body())
	if err != nil {
		return nil, fmt.Errorf("marshal mapping: %w", err)
	}
	return b, nil
}

// TypeBody returns the mapping of the document type itself, as accepted by
// the put-mapping endpoint of typed engines.
func (m Mapping) TypeBody() map[string]any {
	body := m.Body()
	if t, ok := body[m.variant.TypeName()].(map[string]any); ok {
		return t
	}
	return body
}

// BuildMapping derives the engine mapping of a resource schema.
func BuildMapping(def resource.Definition, variant dialect.Variant) (Mapping, error) {
	props, err := buildProperties(def.Schema(), variant)
	if err != nil {
		return Mapping{}, err
	}
	date := map[string]any{"type": "date", "format": DefaultDateFormat}
	for _, ts := range []string{resource.FieldCreated, resource.FieldUpdated} {
		if _, declared := props[ts]; !declared {
			props[ts] = date
		}
	}
	return Mapping{properties: props, variant: variant}, nil
}

// MergeMappings combines the mappings of resources sharing one index. The same
// field mapped differently by two resources is a schema error. The discriminator
// field is added when more than one mapping is merged.
func MergeMappings(variant dialect.Variant, mappings ...Mapping) (Mapping, error) {
	merged := make(map[string]any)
	for _, m := range mappings {
		for name, fm := range m.properties {
			if prev, ok := merged[name]; ok && !reflect.DeepEqual(prev, fm) {
				return Mapping{}, domain.NewSchemaError(name, "conflicting mappings on shared index")
			}
			merged[name] = fm
		}
	}
	if len(mappings) > 1 {
		merged[resource.FieldResource] = map[string]any{"type": "keyword"}
	}
	return Mapping{properties: merged, variant: variant}, nil
}

func buildProperties(schema map[string]field.Schema, variant dialect.Variant) (map[string]any, error) {
	props := make(map[string]any, len(schema)+2)
	for _, name := range field.Names(schema) {
		if name == "_id" {
			continue
		}
		m, err := fieldMapping(name, schema[name], variant, false)
		if err != nil {
			return nil, err
		}
		props[name] = m
	}
	return props, nil
}

// fieldMapping maps one declaration. inNested disables copy_to, which the
// engine does not allow across nested document boundaries.
func fieldMapping(path string, s field.Schema, variant dialect.Variant, inNested bool) (map[string]any, error) {
	copyTo := variant.CopyToCatchAll() && !inNested

	switch s.Kind() {
	case field.Mapped:
		if s.Mapping().IsZero() {
			return nil, domain.NewSchemaError(path, "empty mapping override")
		}
		return s.Mapping().Map(), nil

	case field.String, field.Text:
		if s.IsExact() {
			return keyword(variant, copyTo), nil
		}
		m := map[string]any{"type": "text"}
		if a := s.Analyzer(); a != "" {
			m["analyzer"] = a
		}
		if copyTo {
			m["copy_to"] = variant.CatchAllField()
		}
		return m, nil

	case field.Keyword:
		return keyword(variant, copyTo), nil

	case field.ObjectID:
		return map[string]any{"type": "keyword"}, nil

	case field.Integer:
		return map[string]any{"type": "long"}, nil

	case field.Number:
		return map[string]any{"type": "double"}, nil

	case field.Boolean:
		return map[string]any{"type": "boolean"}, nil

	case field.Date:
		format := DefaultDateFormat
		if f := s.Formats(); len(f) > 0 {
			format = strings.Join(f, "||")
		}
		m := map[string]any{"type": "date", "format": format}
		if s.IgnoresMalformed() {
			m["ignore_malformed"] = true
		}
		return m, nil

	case field.Object:
		children := s.Properties()
		if len(children) == 0 {
			return nil, domain.NewSchemaError(path, "nested object declares no properties")
		}
		nested := inNested || s.IsNestedType()
		props := make(map[string]any, len(children))
		for _, name := range field.Names(children) {
			m, err := fieldMapping(path+"."+name, children[name], variant, nested)
			if err != nil {
				return nil, err
			}
			props[name] = m
		}
		m := map[string]any{"properties": props}
		if s.IsNestedType() {
			m["type"] = "nested"
		}
		return m, nil

	case field.List:
		elem, ok := s.Elem()
		if !ok {
			return nil, domain.NewSchemaError(path, "list declares no element schema")
		}
		return fieldMapping(path, elem, variant, inNested)

	default:
		return nil, domain.NewSchemaError(path, fmt.Sprintf("unsupported type %q", s.Kind()))
	}
}

func keyword(variant dialect.Variant, copyTo bool) map[string]any {
	m := map[string]any{"type": "keyword"}
	if copyTo {
		m["copy_to"] = variant.CatchAllField()
	}
	return m
}

// BuildSettings renders the declared index settings. Undeclared keys are
// left to engine defaults.
func BuildSettings(def resource.Definition) map[string]any {
	s := def.Settings()
	out := make(map[string]any, 3)
	if s.Shards > 0 {
		out["number_of_shards"] = s.Shards
	}
	if s.Replicas != nil {
		out["number_of_replicas"] = *s.Replicas
	}
	if !s.Analysis.IsZero() {
		out["analysis"] = s.Analysis.Map()
	}
	return out
}
