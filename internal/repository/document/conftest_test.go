package document

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain/dialect"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
	"github.com/kailas-cloud/eslayer/internal/repository/index"
	"github.com/kailas-cloud/eslayer/internal/repository/search"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn           func(ctx context.Context, ref db.DocRef) (db.Document, error)
	mgetFn          func(ctx context.Context, index, docType string, ids []string) ([]db.Document, error)
	indexFn         func(ctx context.Context, ref db.DocRef, body []byte, opts db.WriteOptions) (db.Meta, error)
	updateFn        func(ctx context.Context, ref db.DocRef, body []byte, opts db.WriteOptions) (db.Meta, error)
	deleteFn        func(ctx context.Context, ref db.DocRef, opts db.WriteOptions) (db.Meta, error)
	deleteByQueryFn func(ctx context.Context, index, docType string, query []byte) (int, error)
	bulkFn          func(ctx context.Context, index, docType string, items []db.BulkItem) ([]db.BulkResult, error)
	refreshFn       func(ctx context.Context, index string) error
}

func (m *mockStore) GetDocument(ctx context.Context, ref db.DocRef) (db.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ref)
	}
	return db.Document{}, &db.Error{Op: db.OpGet, Status: 404, Err: db.ErrDocumentNotFound}
}

func (m *mockStore) MultiGet(ctx context.Context, index, docType string, ids []string) ([]db.Document, error) {
	if m.mgetFn != nil {
		return m.mgetFn(ctx, index, docType, ids)
	}
	return nil, nil
}

func (m *mockStore) IndexDocument(ctx context.Context, ref db.DocRef, body []byte, opts db.WriteOptions) (db.Meta, error) {
	if m.indexFn != nil {
		return m.indexFn(ctx, ref, body, opts)
	}
	return db.Meta{ID: ref.ID, SeqNo: 0, PrimaryTerm: 1, Version: 1, Result: "created"}, nil
}

func (m *mockStore) UpdateDocument(ctx context.Context, ref db.DocRef, body []byte, opts db.WriteOptions) (db.Meta, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, ref, body, opts)
	}
	return db.Meta{ID: ref.ID, SeqNo: 1, PrimaryTerm: 1, Version: 2, Result: "updated"}, nil
}

func (m *mockStore) DeleteDocument(ctx context.Context, ref db.DocRef, opts db.WriteOptions) (db.Meta, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ref, opts)
	}
	return db.Meta{ID: ref.ID, Result: "deleted"}, nil
}

func (m *mockStore) DeleteByQuery(ctx context.Context, index, docType string, query []byte) (int, error) {
	if m.deleteByQueryFn != nil {
		return m.deleteByQueryFn(ctx, index, docType, query)
	}
	return 0, nil
}

func (m *mockStore) Bulk(ctx context.Context, index, docType string, items []db.BulkItem) ([]db.BulkResult, error) {
	if m.bulkFn != nil {
		return m.bulkFn(ctx, index, docType, items)
	}
	out := make([]db.BulkResult, len(items))
	for i, it := range items {
		out[i] = db.BulkResult{Meta: db.Meta{ID: it.ID, SeqNo: int64(i), PrimaryTerm: 1, Version: 1}}
	}
	return out, nil
}

func (m *mockStore) Refresh(ctx context.Context, index string) error {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, index)
	}
	return nil
}

var (
	contactsTarget = index.Target{Resource: "contacts", Source: "contacts", Index: "contacts"}
	sharedTarget   = index.Target{Resource: "contacts", Source: "contacts", Index: "crm", Shared: true}
	fixedNow       = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
)

func contactsDef(t *testing.T) resource.Definition {
	t.Helper()
	def, err := resource.New("contacts",
		resource.WithField("name", field.Scalar(field.String)),
		resource.WithField("born", field.Scalar(field.Date)),
	)
	if err != nil {
		t.Fatalf("resource.New: %v", err)
	}
	return def
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, search.NewTranslator(dialect.V7.Variant()), 5).WithClock(func() time.Time { return fixedNow })
	return repo, ms
}

func testDocument(t *testing.T, id string, fields map[string]any) domdoc.Document {
	t.Helper()
	doc, err := domdoc.New(id, fields)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return doc
}
