package db

// IndexBuilder is a fluent builder for index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{
		def: IndexDefinition{
			Name:     name,
			Settings: map[string]any{},
			Mappings: map[string]any{},
		},
	}
}

// Shards sets number_of_shards. Non-positive values are ignored.
func (b *IndexBuilder) Shards(n int) *IndexBuilder {
	if n > 0 {
		b.def.Settings["number_of_shards"] = n
	}
	return b
}

// Replicas sets number_of_replicas. Negative values are ignored.
func (b *IndexBuilder) Replicas(n int) *IndexBuilder {
	if n >= 0 {
		b.def.Settings["number_of_replicas"] = n
	}
	return b
}

// Analysis sets custom analyzers, tokenizers and filters.
func (b *IndexBuilder) Analysis(analysis map[string]any) *IndexBuilder {
	if len(analysis) > 0 {
		b.def.Settings["analysis"] = analysis
	}
	return b
}

// Setting sets an arbitrary index setting.
func (b *IndexBuilder) Setting(key string, value any) *IndexBuilder {
	b.def.Settings[key] = value
	return b
}

// Settings merges a prepared settings block.
func (b *IndexBuilder) Settings(settings map[string]any) *IndexBuilder {
	for k, v := range settings {
		b.def.Settings[k] = v
	}
	return b
}

// Mappings sets the mappings block.
func (b *IndexBuilder) Mappings(mappings map[string]any) *IndexBuilder {
	b.def.Mappings = mappings
	return b
}

// Alias adds index aliases.
func (b *IndexBuilder) Alias(names ...string) *IndexBuilder {
	b.def.Aliases = append(b.def.Aliases, names...)
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
