package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/eslayer/internal/domain"
	dombatch "github.com/kailas-cloud/eslayer/internal/domain/batch"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
)

// --- Mocks ---

type mockInserter struct {
	insertFn   func(docs []domdoc.Document) ([]dombatch.Result, error)
	refreshErr error
	callCount  int
	refreshes  int
	lastDocs   []domdoc.Document
}

func (m *mockInserter) InsertMany(
	_ context.Context, _ resource.Definition, _ resource.Target, docs []domdoc.Document,
) ([]dombatch.Result, error) {
	m.callCount++
	m.lastDocs = docs
	if m.insertFn != nil {
		return m.insertFn(docs)
	}
	out := make([]dombatch.Result, len(docs))
	for i, d := range docs {
		out[i] = dombatch.NewCreated(d.ID(), domain.Version{SeqNo: int64(i), PrimaryTerm: 1})
	}
	return out, nil
}

func (m *mockInserter) Refresh(context.Context, resource.Target) error {
	m.refreshes++
	return m.refreshErr
}

type mockResources struct{}

func (mockResources) Get(name string) (resource.Definition, error) {
	if name != "contacts" {
		return resource.Definition{}, fmt.Errorf("resource %s: %w", name, domain.ErrNotFound)
	}
	return resource.New("contacts")
}

type mockIndexes struct{ ensureErr error }

func (mockIndexes) Resolve(name string) (resource.Target, error) {
	return resource.Target{Resource: name, Source: name, Index: name}, nil
}

func (m mockIndexes) EnsureIndex(context.Context, string) error { return m.ensureErr }

func items(t *testing.T, ids ...string) []domdoc.Document {
	t.Helper()
	out := make([]domdoc.Document, len(ids))
	for i, id := range ids {
		d, err := domdoc.New(id, map[string]any{"n": i})
		if err != nil {
			t.Fatalf("document.New: %v", err)
		}
		out[i] = d
	}
	return out
}

// --- InsertMany ---

func TestInsertMany(t *testing.T) {
	ins := &mockInserter{}
	svc := New(ins, mockResources{}, mockIndexes{}).WithIDGenerator(func() string { return "generated" })

	results := svc.InsertMany(context.Background(), "contacts", items(t, "a", "", "c"))
	if len(results) != 3 || dombatch.Failed(results) != 0 {
		t.Fatalf("results = %+v", results)
	}
	if results[1].ID() != "generated" || ins.lastDocs[1].ID() != "generated" {
		t.Errorf("generated id = %q", results[1].ID())
	}
	if ins.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", ins.refreshes)
	}
}

func TestInsertMany_PartialFailure(t *testing.T) {
	ins := &mockInserter{insertFn: func(docs []domdoc.Document) ([]dombatch.Result, error) {
		return []dombatch.Result{
			dombatch.NewCreated(docs[0].ID(), domain.Version{}),
			dombatch.NewError(docs[1].ID(), domain.ErrAlreadyExists),
		}, nil
	}}
	svc := New(ins, mockResources{}, mockIndexes{})
	results := svc.InsertMany(context.Background(), "contacts", items(t, "a", "b"))
	if dombatch.Failed(results) != 1 || !errors.Is(results[1].Err(), domain.ErrAlreadyExists) {
		t.Errorf("results = %+v", results)
	}
}

func TestInsertMany_RequestFailure(t *testing.T) {
	ins := &mockInserter{insertFn: func(docs []domdoc.Document) ([]dombatch.Result, error) {
		err := &domain.BackendUnavailableError{Op: "bulk", Err: errors.New("timeout")}
		return []dombatch.Result{dombatch.NewError(docs[0].ID(), err)}, err
	}}
	svc := New(ins, mockResources{}, mockIndexes{})
	results := svc.InsertMany(context.Background(), "contacts", items(t, "a"))
	if !errors.Is(results[0].Err(), domain.ErrUnavailable) {
		t.Errorf("result = %v", results[0].Err())
	}
	if ins.refreshes != 0 {
		t.Error("refresh after failed request")
	}
}

func TestInsertMany_ExceedsMaxSize(t *testing.T) {
	ins := &mockInserter{}
	svc := New(ins, mockResources{}, mockIndexes{}).WithMaxBatchSize(2)
	results := svc.InsertMany(context.Background(), "contacts", items(t, "a", "b", "c"))
	if dombatch.Failed(results) != 3 || !errors.Is(results[0].Err(), domain.ErrInvalidQuery) {
		t.Errorf("results = %+v", results)
	}
	if ins.callCount != 0 {
		t.Error("engine called for oversized batch")
	}
}

func TestInsertMany_UnknownResource(t *testing.T) {
	ins := &mockInserter{}
	results := New(ins, mockResources{}, mockIndexes{}).InsertMany(context.Background(), "nope", items(t, "a", "b"))
	for _, r := range results {
		if !errors.Is(r.Err(), domain.ErrNotFound) {
			t.Errorf("result %s = %v", r.ID(), r.Err())
		}
	}
}

func TestInsertMany_ProvisioningFailure(t *testing.T) {
	ins := &mockInserter{}
	idx := mockIndexes{ensureErr: &domain.IndexProvisioningError{Resource: "contacts", Index: "contacts", Err: errors.New("boom")}}
	results := New(ins, mockResources{}, idx).InsertMany(context.Background(), "contacts", items(t, "a"))
	if !errors.Is(results[0].Err(), domain.ErrProvisioning) || ins.callCount != 0 {
		t.Errorf("result = %v, calls = %d", results[0].Err(), ins.callCount)
	}
}

func TestInsertMany_RefreshFailure(t *testing.T) {
	ins := &mockInserter{refreshErr: &domain.BackendUnavailableError{Op: "indices.refresh", Err: errors.New("timeout")}}
	results := New(ins, mockResources{}, mockIndexes{}).InsertMany(context.Background(), "contacts", items(t, "a"))
	if !errors.Is(results[0].Err(), domain.ErrUnavailable) {
		t.Errorf("result = %v", results[0].Err())
	}
}

func TestInsertMany_Empty(t *testing.T) {
	ins := &mockInserter{}
	results := New(ins, mockResources{}, mockIndexes{}).InsertMany(context.Background(), "contacts", nil)
	if len(results) != 0 || ins.callCount != 0 {
		t.Errorf("results = %v, calls = %d", results, ins.callCount)
	}
}
