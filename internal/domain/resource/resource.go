// Package resource defines the named collections served by the data layer.
package resource

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/eslayer/internal/domain/dsl"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
	"github.com/kailas-cloud/eslayer/internal/domain/search/order"
	"github.com/kailas-cloud/eslayer/internal/domain/search/projection"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Framework fields maintained on every stored document.
const (
	FieldCreated = "_created"
	FieldUpdated = "_updated"
	// FieldResource tags documents of resources sharing one index.
	FieldResource = "_resource"
)

// Settings are per-index engine settings declared by a resource.
type Settings struct {
	Shards   int
	Replicas *int
	Analysis dsl.Document
}

// Definition is an immutable resource declaration.
type Definition struct {
	name         string
	schema       map[string]field.Schema
	facets       map[string]dsl.Document
	source       string
	index        string
	projection   projection.Projection
	filter       dsl.Document
	defaultSort  []order.Field
	defaultField string
	highlight    dsl.Document
	settings     Settings
	forceRefresh *bool
}

// Option configures a Definition.
type Option func(*Definition)

// WithField declares a field.
func WithField(name string, s field.Schema) Option {
	return func(d *Definition) { d.schema[name] = s }
}

// WithSchema declares several fields at once.
func WithSchema(schema map[string]field.Schema) Option {
	return func(d *Definition) {
		for k, v := range schema {
			d.schema[k] = v
		}
	}
}

// WithFacet declares a named aggregation in engine-native form.
func WithFacet(name string, agg dsl.Document) Option {
	return func(d *Definition) { d.facets[name] = agg }
}

// WithSource reads and writes the documents of another resource.
func WithSource(source string) Option { return func(d *Definition) { d.source = source } }

// WithIndex pins the physical index name.
func WithIndex(index string) Option { return func(d *Definition) { d.index = index } }

// WithProjection sets the default source filter.
func WithProjection(p projection.Projection) Option { return func(d *Definition) { d.projection = p } }

// WithFilter sets a filter that every query on the resource is ANDed with.
func WithFilter(f dsl.Document) Option { return func(d *Definition) { d.filter = f } }

// WithDefaultSort sets the sort used for non-text queries without explicit sort.
func WithDefaultSort(fields ...order.Field) Option {
	return func(d *Definition) { d.defaultSort = append([]order.Field(nil), fields...) }
}

// WithDefaultField sets the default full-text field.
func WithDefaultField(name string) Option { return func(d *Definition) { d.defaultField = name } }

// WithHighlight sets the engine highlight block used when a query asks for highlights.
func WithHighlight(h dsl.Document) Option { return func(d *Definition) { d.highlight = h } }

// WithSettings sets index settings.
func WithSettings(s Settings) Option { return func(d *Definition) { d.settings = s } }

// WithForceRefresh overrides the global refresh-after-write policy.
func WithForceRefresh(v bool) Option { return func(d *Definition) { d.forceRefresh = &v } }

// New validates and creates a Definition.
func New(name string, opts ...Option) (Definition, error) {
	d := Definition{
		name:   name,
		schema: make(map[string]field.Schema),
		facets: make(map[string]dsl.Document),
	}
	for _, o := range opts {
		o(&d)
	}
	if err := validateName("resource", name); err != nil {
		return Definition{}, err
	}
	if d.source != "" {
		if err := validateName("source", d.source); err != nil {
			return Definition{}, err
		}
	}
	for fname := range d.schema {
		if fname == "" || strings.Contains(fname, ".") {
			return Definition{}, fmt.Errorf("resource %s: invalid field name %q", name, fname)
		}
	}
	for fname, agg := range d.facets {
		if fname == "" {
			return Definition{}, fmt.Errorf("resource %s: facet name is required", name)
		}
		if agg.IsZero() {
			return Definition{}, fmt.Errorf("resource %s: facet %q has no definition", name, fname)
		}
	}
	if d.settings.Shards < 0 {
		return Definition{}, fmt.Errorf("resource %s: shards must not be negative", name)
	}
	if d.settings.Replicas != nil && *d.settings.Replicas < 0 {
		return Definition{}, fmt.Errorf("resource %s: replicas must not be negative", name)
	}
	return d, nil
}

func validateName(what, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", what)
	}
	if len(name) > 64 {
		return fmt.Errorf("%s name too long (max 64)", what)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%s name %q must be alphanumeric with underscores and hyphens", what, name)
	}
	return nil
}

// Name returns the resource name.
func (d Definition) Name() string { return d.name }

// Source returns the resource whose documents this one serves, itself by default.
func (d Definition) Source() string {
	if d.source == "" {
		return d.name
	}
	return d.source
}

// Schema returns a copy of the top-level field declarations.
func (d Definition) Schema() map[string]field.Schema {
	out := make(map[string]field.Schema, len(d.schema))
	for k, v := range d.schema {
		out[k] = v
	}
	return out
}

// Field resolves a dotted path through nested objects and list elements.
func (d Definition) Field(path string) (field.Schema, bool) {
	props := d.schema
	parts := strings.Split(path, ".")
	for i, p := range parts {
		s, ok := props[p]
		if !ok {
			return field.Schema{}, false
		}
		if e, isList := s.Elem(); isList && i < len(parts)-1 {
			s = e
		}
		if i == len(parts)-1 {
			return s, true
		}
		if !s.IsNested() {
			return field.Schema{}, false
		}
		props = s.Properties()
	}
	return field.Schema{}, false
}

// Facet returns a declared facet definition.
func (d Definition) Facet(name string) (dsl.Document, bool) {
	f, ok := d.facets[name]
	return f, ok
}

// FacetNames returns declared facet names, sorted.
func (d Definition) FacetNames() []string {
	names := make([]string, 0, len(d.facets))
	for n := range d.facets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasFacets reports whether any facet is declared.
func (d Definition) HasFacets() bool { return len(d.facets) > 0 }

// Index returns the pinned index name, if any.
func (d Definition) Index() string { return d.index }

// Projection returns the default source filter.
func (d Definition) Projection() projection.Projection { return d.projection }

// Filter returns the resource-wide filter.
func (d Definition) Filter() dsl.Document { return d.filter }

// DefaultSort returns the default sort pairs.
func (d Definition) DefaultSort() []order.Field { return append([]order.Field(nil), d.defaultSort...) }

// DefaultField returns the default full-text field, if declared.
func (d Definition) DefaultField() string { return d.defaultField }

// Highlight returns the highlight block.
func (d Definition) Highlight() dsl.Document { return d.highlight }

// Settings returns the index settings.
func (d Definition) Settings() Settings { return d.settings }

// ForceRefresh returns the per-resource refresh override and whether one is set.
func (d Definition) ForceRefresh() (value, ok bool) {
	if d.forceRefresh == nil {
		return false, false
	}
	return *d.forceRefresh, true
}

// RefreshAfterWrite resolves the refresh policy against the global default.
func (d Definition) RefreshAfterWrite(global bool) bool {
	if v, ok := d.ForceRefresh(); ok {
		return v
	}
	return global
}
