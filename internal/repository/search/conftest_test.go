package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain/dialect"
	"github.com/kailas-cloud/eslayer/internal/domain/dsl"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/repository/index"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn func(ctx context.Context, req *db.SearchRequest) ([]byte, error)
	countFn  func(ctx context.Context, req *db.SearchRequest) (int, error)
	calls    int
}

func (m *mockStore) Search(ctx context.Context, req *db.SearchRequest) ([]byte, error) {
	m.calls++
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return []byte(`{"hits":{"total":{"value":0},"hits":[]}}`), nil
}

func (m *mockStore) Count(ctx context.Context, req *db.SearchRequest) (int, error) {
	m.calls++
	if m.countFn != nil {
		return m.countFn(ctx, req)
	}
	return 0, nil
}

var contactsTarget = index.Target{Resource: "contacts", Source: "contacts", Index: "contacts"}

func contactsDef(t *testing.T, opts ...resource.Option) resource.Definition {
	t.Helper()
	base := []resource.Option{
		resource.WithField("name", field.Scalar(field.String)),
		resource.WithField("urgency", field.Scalar(field.Integer)),
		resource.WithField("status", field.Scalar(field.Keyword)),
		resource.WithField("born", field.Scalar(field.Date)),
		resource.WithField("address", field.Nested(map[string]field.Schema{
			"city": field.Scalar(field.Keyword),
		})),
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

func mustRequest(t *testing.T, opts ...request.Option) request.Request {
	t.Helper()
	r, err := request.New(opts...)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return r
}

func newTestCompiler(cfg CompilerConfig) *Compiler {
	return NewCompiler(dialect.V7.Variant(), cfg)
}

// body decodes a compiled request body.
func body(t *testing.T, c *Compiled) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(c.Request.Body, &m); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	return m
}

func canonical(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ := json.Marshal(back)
	return string(out)
}

func assertJSON(t *testing.T, got any, want string) {
	t.Helper()
	var w any
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("bad want json: %v", err)
	}
	if g, ws := canonical(t, got), canonical(t, w); g != ws {
		t.Errorf("json mismatch\n got: %s\nwant: %s", g, ws)
	}
}

func jsonMap(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}
