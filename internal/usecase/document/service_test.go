package document

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/eslayer/internal/domain"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/document/patch"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// --- Mocks ---

// memRepo is an in-memory Repository with engine-like versioning.
type memRepo struct {
	docs      map[string]map[string]any
	versions  map[string]domain.Version
	seq       int64
	refreshes int
	err       error
}

func newMemRepo() *memRepo {
	return &memRepo{docs: map[string]map[string]any{}, versions: map[string]domain.Version{}}
}

func (m *memRepo) write(id string, fields map[string]any) domain.Version {
	m.seq++
	v := domain.Version{SeqNo: m.seq, PrimaryTerm: 1, Version: m.versions[id].Version + 1}
	m.docs[id] = fields
	m.versions[id] = v
	return v
}

func (m *memRepo) check(def resource.Definition, id string, expected *domain.Version) error {
	cur, ok := m.versions[id]
	if !ok {
		return &domain.NotFoundError{Resource: def.Name(), ID: id}
	}
	if expected != nil && !expected.Matches(cur) {
		return &domain.ConflictError{Resource: def.Name(), ID: id, Current: &cur}
	}
	return nil
}

func (m *memRepo) Insert(_ context.Context, def resource.Definition, _ resource.Target, doc domdoc.Document) (domain.Version, error) {
	if m.err != nil {
		return domain.Version{}, m.err
	}
	if _, ok := m.docs[doc.ID()]; ok {
		return domain.Version{}, domain.ErrAlreadyExists
	}
	return m.write(doc.ID(), doc.Fields()), nil
}

func (m *memRepo) Replace(
	_ context.Context, def resource.Definition, _ resource.Target, doc domdoc.Document, expected *domain.Version,
) (domain.Version, error) {
	if expected != nil {
		if err := m.check(def, doc.ID(), expected); err != nil {
			return domain.Version{}, err
		}
	}
	return m.write(doc.ID(), doc.Fields()), nil
}

func (m *memRepo) Update(
	_ context.Context, def resource.Definition, _ resource.Target, id string, p patch.Patch, expected *domain.Version,
) (domain.Version, error) {
	if err := m.check(def, id, expected); err != nil {
		return domain.Version{}, err
	}
	merged := m.docs[id]
	for k, v := range p.Fields() {
		merged[k] = v
	}
	return m.write(id, merged), nil
}

func (m *memRepo) Delete(_ context.Context, def resource.Definition, _ resource.Target, id string, expected *domain.Version) error {
	if err := m.check(def, id, expected); err != nil {
		return err
	}
	delete(m.docs, id)
	delete(m.versions, id)
	return nil
}

func (m *memRepo) Get(_ context.Context, def resource.Definition, _ resource.Target, id string) (result.Item, error) {
	if err := m.check(def, id, nil); err != nil {
		return nil, err
	}
	item := result.Item{result.FieldID: id}
	for k, v := range m.docs[id] {
		item[k] = v
	}
	item.SetVersion(m.versions[id])
	return item, nil
}

func (m *memRepo) GetMany(ctx context.Context, def resource.Definition, t resource.Target, ids []string) ([]result.Item, error) {
	var out []result.Item
	for _, id := range ids {
		if item, err := m.Get(ctx, def, t, id); err == nil {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteAll(_ context.Context, _ resource.Definition, _ resource.Target, _ []byte) (int, error) {
	n := len(m.docs)
	m.docs = map[string]map[string]any{}
	m.versions = map[string]domain.Version{}
	return n, nil
}

func (m *memRepo) Refresh(context.Context, resource.Target) error {
	m.refreshes++
	return nil
}

type mockResources struct{ defs map[string]resource.Definition }

func (m *mockResources) Get(name string) (resource.Definition, error) {
	d, ok := m.defs[name]
	if !ok {
		return resource.Definition{}, domain.ErrNotFound
	}
	return d, nil
}

type mockIndexes struct {
	ensured   []string
	ensureErr error
}

func (m *mockIndexes) Resolve(name string) (resource.Target, error) {
	return resource.Target{Resource: name, Source: name, Index: name}, nil
}

func (m *mockIndexes) EnsureIndex(_ context.Context, name string) error {
	m.ensured = append(m.ensured, name)
	return m.ensureErr
}

type mockScoper struct{}

func (mockScoper) ScopeQuery(resource.Definition, resource.Target) ([]byte, error) {
	return []byte(`{"match_all":{}}`), nil
}

type mockCounter struct{ repo *memRepo }

func (m mockCounter) Count(context.Context, resource.Definition, resource.Target, request.Request) (int64, error) {
	return int64(len(m.repo.docs)), nil
}

type fixture struct {
	svc     *Service
	repo    *memRepo
	indexes *mockIndexes
}

func newFixture(t *testing.T, opts ...resource.Option) fixture {
	t.Helper()
	contacts, err := resource.New("contacts", opts...)
	if err != nil {
		t.Fatalf("resource.New: %v", err)
	}
	repo := newMemRepo()
	idx := &mockIndexes{}
	svc := New(repo, &mockResources{defs: map[string]resource.Definition{"contacts": contacts}}, idx, mockScoper{}, mockCounter{repo})
	seq := 0
	svc.WithIDGenerator(func() string {
		seq++
		return "gen-" + string(rune('0'+seq))
	})
	return fixture{svc: svc, repo: repo, indexes: idx}
}

func doc(t *testing.T, id string, fields map[string]any) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(id, fields)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return d
}

// --- Insert ---

func TestInsert_GeneratesID(t *testing.T) {
	f := newFixture(t)
	id, v, err := f.svc.Insert(context.Background(), "contacts", doc(t, "", map[string]any{"name": "Ann"}))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != "gen-1" || v.SeqNo != 1 {
		t.Errorf("id = %q, version = %+v", id, v)
	}
	if len(f.indexes.ensured) != 1 || f.indexes.ensured[0] != "contacts" {
		t.Errorf("ensured = %v", f.indexes.ensured)
	}
	if f.repo.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", f.repo.refreshes)
	}
}

func TestInsert_DefaultGeneratorIsUUID(t *testing.T) {
	contacts, _ := resource.New("contacts")
	repo := newMemRepo()
	svc := New(repo, &mockResources{defs: map[string]resource.Definition{"contacts": contacts}}, &mockIndexes{}, mockScoper{}, mockCounter{repo})
	id, _, err := svc.Insert(context.Background(), "contacts", doc(t, "", nil))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("id = %q, want a uuid", id)
	}
}

func TestInsert_RefreshPolicy(t *testing.T) {
	f := newFixture(t)
	f.svc.WithForceRefresh(false)
	if _, _, err := f.svc.Insert(context.Background(), "contacts", doc(t, "a", nil)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if f.repo.refreshes != 0 {
		t.Errorf("refreshes = %d with policy off", f.repo.refreshes)
	}

	f = newFixture(t, resource.WithForceRefresh(true))
	f.svc.WithForceRefresh(false)
	if _, _, err := f.svc.Insert(context.Background(), "contacts", doc(t, "a", nil)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if f.repo.refreshes != 1 {
		t.Errorf("per-resource override ignored: refreshes = %d", f.repo.refreshes)
	}
}

func TestInsert_Errors(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.svc.Insert(context.Background(), "nope", doc(t, "a", nil)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown resource: %v", err)
	}

	f.indexes.ensureErr = &domain.IndexProvisioningError{Resource: "contacts", Index: "contacts", Err: errors.New("boom")}
	_, _, err := f.svc.Insert(context.Background(), "contacts", doc(t, "a", nil))
	if !errors.Is(err, domain.ErrProvisioning) {
		t.Errorf("provisioning: %v", err)
	}
	if len(f.repo.docs) != 0 {
		t.Error("document written despite provisioning failure")
	}
}

// --- Round trip ---

func TestWriteReadRoundTripWithStaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, v1, err := f.svc.Insert(ctx, "contacts", doc(t, "c1", map[string]any{"name": "Ann", "urgency": 1}))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := f.svc.Get(ctx, "contacts", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["name"] != "Ann" || got[result.FieldETag] != v1.ETag() {
		t.Errorf("read back %v", got)
	}

	p, _ := patch.New(map[string]any{"urgency": 2})
	v2, err := f.svc.Update(ctx, "contacts", id, p, &v1)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	_, err = f.svc.Replace(ctx, "contacts", doc(t, id, map[string]any{"name": "Bob"}), &v1)
	var ce *domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Current == nil || !ce.Current.Matches(v2) {
		t.Errorf("current = %+v, want %+v", ce.Current, v2)
	}

	if _, err := f.svc.Replace(ctx, "contacts", doc(t, id, map[string]any{"name": "Bob"}), ce.Current); err != nil {
		t.Fatalf("Replace with current version: %v", err)
	}
	got, _ = f.svc.Get(ctx, "contacts", id)
	if got["name"] != "Bob" {
		t.Errorf("name = %v", got["name"])
	}
}

// --- Other operations ---

func TestReplace_RequiresID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Replace(context.Background(), "contacts", doc(t, "", nil), nil)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestGetMany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if _, _, err := f.svc.Insert(ctx, "contacts", doc(t, id, nil)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	items, err := f.svc.GetMany(ctx, "contacts", []string{"b", "x", "a"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(items) != 2 || items[0].ID() != "b" || items[1].ID() != "a" {
		t.Errorf("items = %v", items)
	}

	if _, err := f.svc.GetMany(ctx, "contacts", make([]string, MaxGetMany+1)); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("oversized mget: %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, v, _ := f.svc.Insert(ctx, "contacts", doc(t, "a", nil))

	stale := domain.Version{SeqNo: v.SeqNo + 10, PrimaryTerm: 1}
	if err := f.svc.Delete(ctx, "contacts", "a", &stale); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("stale delete: %v", err)
	}
	if err := f.svc.Delete(ctx, "contacts", "a", &v); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, "contacts", "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
}

func TestDeleteAllAndIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.IsEmpty(ctx, "contacts")
	if err != nil || !empty {
		t.Fatalf("IsEmpty = %v, %v", empty, err)
	}
	for _, id := range []string{"a", "b", "c"} {
		_, _, _ = f.svc.Insert(ctx, "contacts", doc(t, id, nil))
	}
	if empty, _ := f.svc.IsEmpty(ctx, "contacts"); empty {
		t.Error("IsEmpty = true after inserts")
	}

	n, err := f.svc.DeleteAll(ctx, "contacts")
	if err != nil || n != 3 {
		t.Fatalf("DeleteAll = %d, %v", n, err)
	}
	if empty, _ := f.svc.IsEmpty(ctx, "contacts"); !empty {
		t.Error("IsEmpty = false after DeleteAll")
	}
}
