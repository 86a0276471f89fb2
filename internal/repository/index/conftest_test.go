package index

import (
	"context"
	"testing"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain/dialect"
	"github.com/kailas-cloud/eslayer/internal/domain/dsl"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	putMappingFn  func(ctx context.Context, index, docType string, mapping []byte) error
	putSettingsFn func(ctx context.Context, index string, settings []byte) error
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) PutMapping(ctx context.Context, index, docType string, mapping []byte) error {
	if m.putMappingFn != nil {
		return m.putMappingFn(ctx, index, docType, mapping)
	}
	return nil
}

func (m *mockStore) PutSettings(ctx context.Context, index string, settings []byte) error {
	if m.putSettingsFn != nil {
		return m.putSettingsFn(ctx, index, settings)
	}
	return nil
}

func contactsDef(t *testing.T, opts ...resource.Option) resource.Definition {
	t.Helper()
	base := []resource.Option{
		resource.WithField("name", field.Scalar(field.String)),
		resource.WithField("urgency", field.Scalar(field.Integer)),
		resource.WithField("email", field.Scalar(field.String, field.Exact())),
		resource.WithFacet("urgency", dsl.MustFromMap(map[string]any{
			"terms": map[string]any{"field": "urgency"},
		})),
	}
	def, err := resource.New("contacts", append(base, opts...)...)
	if err != nil {
		t.Fatalf("resource.New: %v", err)
	}
	return def
}

func mustDef(t *testing.T, name string, opts ...resource.Option) resource.Definition {
	t.Helper()
	def, err := resource.New(name, opts...)
	if err != nil {
		t.Fatalf("resource.New(%s): %v", name, err)
	}
	return def
}

func newTestManager(t *testing.T, s *mockStore, cfg Config, defs ...resource.Definition) *Manager {
	t.Helper()
	reg, err := resource.NewRegistry(defs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	m, err := NewManager(s, reg, dialect.V7.Variant(), cfg, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}
