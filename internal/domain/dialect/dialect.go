// Package dialect isolates the document shapes that differ between the
// supported engine major versions. Mapper and compiler call the Variant
// instead of branching on versions themselves.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect names a supported engine major version.
type Dialect string

const (
	// V6 is Elasticsearch 6.x: single custom mapping type, _all field.
	V6 Dialect = "v6"
	// V7 is Elasticsearch 7.x and OpenSearch 1.x: typeless, totals as objects.
	V7 Dialect = "v7"
)

// Default is used when no dialect is configured.
const Default = V7

// Parse accepts "6", "v6", "6.x", "7", "v7", "7.x" and the empty string (Default).
func Parse(s string) (Dialect, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v")
	v, _, _ = strings.Cut(v, ".")
	switch v {
	case "":
		return Default, nil
	case "6":
		return V6, nil
	case "7":
		return V7, nil
	default:
		return "", fmt.Errorf("unsupported engine dialect %q (want v6 or v7)", s)
	}
}

// IsValid reports whether d is a supported dialect.
func (d Dialect) IsValid() bool { return d == V6 || d == V7 }

// Variant returns the adapter for d. Unknown values fall back to Default.
func (d Dialect) Variant() Variant {
	if d == V6 {
		return v6{}
	}
	return v7{}
}

// Variant produces the version-specific parts of mapping and search documents.
type Variant interface {
	Dialect() Dialect
	// TypeName is the mapping type documents are stored under.
	TypeName() string
	// PathType is the type used in request paths; empty means typeless endpoints.
	PathType() string
	// CatchAllField is the default full-text field.
	CatchAllField() string
	// CopyToCatchAll reports whether string fields must copy into CatchAllField.
	CopyToCatchAll() bool
	// WrapMapping turns a properties block into the mappings section of an index.
	WrapMapping(properties map[string]any) map[string]any
	// DecorateSearch adds version-specific keys to a search body.
	DecorateSearch(body map[string]any)
	// ExposeType reports whether hits carry a meaningful _type.
	ExposeType() bool
}

type v6 struct{}

func (v6) Dialect() Dialect      { return V6 }
func (v6) TypeName() string      { return "doc" }
func (v6) PathType() string      { return "doc" }
func (v6) CatchAllField() string { return "_all" }
func (v6) CopyToCatchAll() bool  { return false }
func (v6) ExposeType() bool      { return true }

func (v6) WrapMapping(properties map[string]any) map[string]any {
	return map[string]any{
		"doc": map[string]any{
			"_all":       map[string]any{"enabled": true},
			"properties": properties,
		},
	}
}

// DecorateSearch asks for the concurrency tokens of every hit (6.7+, the
// same floor as if_seq_no writes). 6.x totals are always exact.
func (v6) DecorateSearch(body map[string]any) {
	body["seq_no_primary_term"] = true
}

type v7 struct{}

const v7CatchAll = "all"

func (v7) Dialect() Dialect      { return V7 }
func (v7) TypeName() string      { return "_doc" }
func (v7) PathType() string      { return "" }
func (v7) CatchAllField() string { return v7CatchAll }
func (v7) CopyToCatchAll() bool  { return true }
func (v7) ExposeType() bool      { return false }

func (v7) WrapMapping(properties map[string]any) map[string]any {
	props := make(map[string]any, len(properties)+1)
	for k, v := range properties {
		props[k] = v
	}
	if _, ok := props[v7CatchAll]; !ok {
		props[v7CatchAll] = map[string]any{"type": "text"}
	}
	return map[string]any{"properties": props}
}

// DecorateSearch asks for exact totals, which 7.x otherwise caps at 10000,
// and for the concurrency tokens of every hit.
func (v7) DecorateSearch(body map[string]any) {
	body["track_total_hits"] = true
	body["seq_no_primary_term"] = true
}
