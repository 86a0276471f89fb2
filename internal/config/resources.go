package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/eslayer/internal/domain/dsl"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
	"github.com/kailas-cloud/eslayer/internal/domain/search/order"
	"github.com/kailas-cloud/eslayer/internal/domain/search/projection"
)

// ResourcesFile is the on-disk layout of resource declarations.
type ResourcesFile struct {
	Resources map[string]ResourceSpec `yaml:"resources"`
}

// ResourceSpec declares one resource.
type ResourceSpec struct {
	Schema       map[string]FieldSpec    `yaml:"schema"`
	Facets       map[string]dsl.Document `yaml:"facets"`
	Datasource   DatasourceSpec          `yaml:"datasource"`
	Settings     SettingsSpec            `yaml:"settings"`
	ForceRefresh *bool                   `yaml:"force_refresh"`
}

// DatasourceSpec maps a resource onto stored documents.
type DatasourceSpec struct {
	Source       string         `yaml:"source"`
	Index        string         `yaml:"index"`
	Projection   map[string]int `yaml:"projection"`
	Filter       dsl.Document   `yaml:"filter"`
	DefaultSort  string         `yaml:"default_sort"` // "-urgency,name"
	DefaultField string         `yaml:"default_field"`
	Highlight    dsl.Document   `yaml:"highlight"`
}

// SettingsSpec holds per-index settings.
type SettingsSpec struct {
	Shards   int          `yaml:"shards"`
	Replicas *int         `yaml:"replicas"`
	Analysis dsl.Document `yaml:"analysis"`
}

// FieldSpec declares one field. Schema holds object properties; Items holds
// the element of a list.
type FieldSpec struct {
	Type            string               `yaml:"type"`
	Exact           bool                 `yaml:"exact"`
	Analyzer        string               `yaml:"analyzer"`
	Formats         []string             `yaml:"formats"`
	IgnoreMalformed bool                 `yaml:"ignore_malformed"`
	Nested          bool                 `yaml:"nested"`
	Schema          map[string]FieldSpec `yaml:"schema"`
	Items           *FieldSpec           `yaml:"items"`
	Mapping         dsl.Document         `yaml:"mapping"`
}

// LoadResources reads and builds the registry declared in path.
func LoadResources(path string) (*resource.Registry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read resources %s: %w", path, err)
	}
	return ParseResources(data)
}

// ParseResources decodes resource declarations after env expansion.
func ParseResources(data []byte) (*resource.Registry, error) {
	var file ResourcesFile
	if err := yaml.Unmarshal(expandEnvVars(data), &file); err != nil {
		return nil, fmt.Errorf("failed to parse resources: %w", err)
	}
	if len(file.Resources) == 0 {
		return nil, fmt.Errorf("no resources declared")
	}

	names := make([]string, 0, len(file.Resources))
	for name := range file.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]resource.Definition, 0, len(names))
	for _, name := range names {
		def, err := file.Resources[name].Definition(name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return resource.NewRegistry(defs...)
}

// Definition builds the resource declared by s.
func (s ResourceSpec) Definition(name string) (resource.Definition, error) {
	schema, err := buildSchema(s.Schema)
	if err != nil {
		return resource.Definition{}, fmt.Errorf("resource %s: %w", name, err)
	}

	opts := []resource.Option{resource.WithSchema(schema)}
	for fname, agg := range s.Facets {
		opts = append(opts, resource.WithFacet(fname, agg))
	}

	ds := s.Datasource
	if ds.Source != "" {
		opts = append(opts, resource.WithSource(ds.Source))
	}
	if ds.Index != "" {
		opts = append(opts, resource.WithIndex(ds.Index))
	}
	if len(ds.Projection) > 0 {
		opts = append(opts, resource.WithProjection(projection.FromMap(ds.Projection)))
	}
	if !ds.Filter.IsZero() {
		opts = append(opts, resource.WithFilter(ds.Filter))
	}
	if ds.DefaultSort != "" {
		fields, err := order.Parse(ds.DefaultSort)
		if err != nil {
			return resource.Definition{}, fmt.Errorf("resource %s: default_sort: %w", name, err)
		}
		opts = append(opts, resource.WithDefaultSort(fields...))
	}
	if ds.DefaultField != "" {
		opts = append(opts, resource.WithDefaultField(ds.DefaultField))
	}
	if !ds.Highlight.IsZero() {
		opts = append(opts, resource.WithHighlight(ds.Highlight))
	}

	opts = append(opts, resource.WithSettings(resource.Settings{
		Shards:   s.Settings.Shards,
		Replicas: s.Settings.Replicas,
		Analysis: s.Settings.Analysis,
	}))
	if s.ForceRefresh != nil {
		opts = append(opts, resource.WithForceRefresh(*s.ForceRefresh))
	}

	return resource.New(name, opts...)
}

func buildSchema(specs map[string]FieldSpec) (map[string]field.Schema, error) {
	out := make(map[string]field.Schema, len(specs))
	for name, fs := range specs {
		s, err := fs.schema(name)
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
}

func (f FieldSpec) schema(path string) (field.Schema, error) {
	if !f.Mapping.IsZero() {
		return field.Raw(f.Mapping), nil
	}

	var opts []field.Option
	if f.Exact {
		opts = append(opts, field.Exact())
	}
	if f.Analyzer != "" {
		opts = append(opts, field.Analyzer(f.Analyzer))
	}
	if len(f.Formats) > 0 {
		opts = append(opts, field.Formats(f.Formats...))
	}
	if f.IgnoreMalformed {
		opts = append(opts, field.IgnoreMalformed())
	}
	if f.Nested {
		opts = append(opts, field.AsNestedType())
	}

	kind := field.ParseKind(f.Type)
	switch {
	case kind == field.List:
		if f.Items == nil {
			return field.Schema{}, fmt.Errorf("field %s: list requires items", path)
		}
		elem, err := f.Items.schema(path + "[]")
		if err != nil {
			return field.Schema{}, err
		}
		return field.ListOf(elem), nil
	case kind == field.Object || (kind == "" && len(f.Schema) > 0):
		props := make(map[string]field.Schema, len(f.Schema))
		for name, child := range f.Schema {
			s, err := child.schema(path + "." + name)
			if err != nil {
				return field.Schema{}, err
			}
			props[name] = s
		}
		return field.Nested(props, opts...), nil
	case kind == "":
		return field.Schema{}, fmt.Errorf("field %s: type is required", path)
	default:
		// Unsupported kinds are reported by the schema mapper with the field path.
		return field.Scalar(kind, opts...), nil
	}
}
