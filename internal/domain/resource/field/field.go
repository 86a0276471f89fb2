// Package field describes resource fields as a tagged variant:
// a scalar kind, a nested object with its own properties, or a list of an
// element schema.
package field

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/eslayer/internal/domain/dsl"
)

// Kind is the declared semantic type of a field.
type Kind string

// Scalar kinds.
const (
	String   Kind = "string"
	Text     Kind = "text"
	Keyword  Kind = "keyword"
	Integer  Kind = "integer"
	Number   Kind = "number"
	Date     Kind = "date"
	Boolean  Kind = "boolean"
	ObjectID Kind = "objectid"
)

// Composite kinds.
const (
	Object Kind = "object"
	List   Kind = "list"
	// Mapped marks a field carrying a verbatim engine mapping.
	Mapped Kind = "mapped"
)

var kindAliases = map[string]Kind{
	"str": String, "float": Number, "double": Number, "long": Integer, "int": Integer,
	"datetime": Date, "bool": Boolean, "dict": Object, "nested": Object, "array": List,
}

// ParseKind normalizes a declared type name. Unknown names are returned as-is
// so the mapper can report them against the field that declared them.
func ParseKind(s string) Kind {
	k := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := kindAliases[k]; ok {
		return alias
	}
	return Kind(k)
}

// IsScalar reports whether k is a supported scalar kind.
func (k Kind) IsScalar() bool {
	switch k {
	case String, Text, Keyword, Integer, Number, Date, Boolean, ObjectID:
		return true
	}
	return false
}

// Schema is an immutable field declaration.
type Schema struct {
	kind            Kind
	exact           bool
	analyzer        string
	formats         []string
	ignoreMalformed bool
	nestedType      bool
	properties      map[string]Schema
	elem            *Schema
	mapping         dsl.Document
}

// Option tunes a field declaration.
type Option func(*Schema)

// Exact marks a string as exact-match (keyword) instead of analyzed text.
func Exact() Option { return func(s *Schema) { s.exact = true } }

// Analyzer assigns a named analyzer to a text field.
func Analyzer(name string) Option { return func(s *Schema) { s.analyzer = name } }

// Formats sets the accepted date formats.
func Formats(formats ...string) Option {
	return func(s *Schema) { s.formats = append([]string(nil), formats...) }
}

// IgnoreMalformed makes the engine skip unparseable values instead of rejecting the document.
func IgnoreMalformed() Option { return func(s *Schema) { s.ignoreMalformed = true } }

// AsNestedType indexes object lists as independent nested documents.
func AsNestedType() Option { return func(s *Schema) { s.nestedType = true } }

// Scalar declares a scalar field.
func Scalar(kind Kind, opts ...Option) Schema {
	s := Schema{kind: kind}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Nested declares an object with its own properties.
func Nested(properties map[string]Schema, opts ...Option) Schema {
	s := Schema{kind: Object, properties: copyProps(properties)}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// ListOf declares a list whose items follow elem.
func ListOf(elem Schema) Schema {
	e := elem
	return Schema{kind: List, elem: &e}
}

// Raw declares a field whose engine mapping is given verbatim.
func Raw(mapping dsl.Document) Schema {
	return Schema{kind: Mapped, mapping: mapping}
}

// Kind returns the declared kind.
func (s Schema) Kind() Kind { return s.kind }

// IsNested reports whether s is an object declaration.
func (s Schema) IsNested() bool { return s.kind == Object }

// IsList reports whether s is a list declaration.
func (s Schema) IsList() bool { return s.kind == List }

// IsExact reports whether a string field is exact-match.
func (s Schema) IsExact() bool { return s.exact }

// Analyzer returns the analyzer name, if any.
func (s Schema) Analyzer() string { return s.analyzer }

// Formats returns the accepted date formats.
func (s Schema) Formats() []string { return append([]string(nil), s.formats...) }

// IgnoresMalformed reports whether malformed values are skipped.
func (s Schema) IgnoresMalformed() bool { return s.ignoreMalformed }

// IsNestedType reports whether an object maps to the engine nested type.
func (s Schema) IsNestedType() bool { return s.nestedType }

// Properties returns a copy of the nested properties.
func (s Schema) Properties() map[string]Schema { return copyProps(s.properties) }

// Elem returns the list element schema.
func (s Schema) Elem() (Schema, bool) {
	if s.elem == nil {
		return Schema{}, false
	}
	return *s.elem, true
}

// Mapping returns the verbatim engine mapping of a Raw field.
func (s Schema) Mapping() dsl.Document { return s.mapping }

// IsDate reports whether values of s, or of its list elements, are dates.
func (s Schema) IsDate() bool {
	if s.kind == List && s.elem != nil {
		return s.elem.IsDate()
	}
	return s.kind == Date
}

// Names returns the keys of props in sorted order.
func Names(props map[string]Schema) []string {
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Walk visits every field depth-first in sorted order with its dotted path.
// List elements are visited under the list's own path.
func Walk(props map[string]Schema, fn func(path string, s Schema)) {
	walk("", props, fn)
}

func walk(prefix string, props map[string]Schema, fn func(string, Schema)) {
	for _, name := range Names(props) {
		s := props[name]
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		fn(path, s)
		target := s
		if e, ok := s.Elem(); ok {
			target = e
		}
		if target.IsNested() {
			walk(path, target.properties, fn)
		}
	}
}

func copyProps(in map[string]Schema) map[string]Schema {
	if in == nil {
		return nil
	}
	out := make(map[string]Schema, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
