package eslayer

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/eslayer/internal/domain"
	dombatch "github.com/kailas-cloud/eslayer/internal/domain/batch"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/document/patch"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/filter"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/eslayer/internal/usecase/health"
)

// --- documentUseCase mock ---

type mockDocumentUC struct {
	insertFn    func(ctx context.Context, name string, doc domdoc.Document) (string, domain.Version, error)
	getFn       func(ctx context.Context, name, id string) (result.Item, error)
	getManyFn   func(ctx context.Context, name string, ids []string) ([]result.Item, error)
	updateFn    func(ctx context.Context, name, id string, p patch.Patch, expected *domain.Version) (domain.Version, error)
	replaceFn   func(ctx context.Context, name string, doc domdoc.Document, expected *domain.Version) (domain.Version, error)
	deleteFn    func(ctx context.Context, name, id string, expected *domain.Version) error
	deleteAllFn func(ctx context.Context, name string) (int, error)
	isEmptyFn   func(ctx context.Context, name string) (bool, error)
}

func (m *mockDocumentUC) Insert(
	ctx context.Context, name string, doc domdoc.Document,
) (string, domain.Version, error) {
	return m.insertFn(ctx, name, doc)
}

func (m *mockDocumentUC) Get(ctx context.Context, name, id string) (result.Item, error) {
	return m.getFn(ctx, name, id)
}

func (m *mockDocumentUC) GetMany(ctx context.Context, name string, ids []string) ([]result.Item, error) {
	return m.getManyFn(ctx, name, ids)
}

func (m *mockDocumentUC) Update(
	ctx context.Context, name, id string, p patch.Patch, expected *domain.Version,
) (domain.Version, error) {
	return m.updateFn(ctx, name, id, p, expected)
}

func (m *mockDocumentUC) Replace(
	ctx context.Context, name string, doc domdoc.Document, expected *domain.Version,
) (domain.Version, error) {
	return m.replaceFn(ctx, name, doc, expected)
}

func (m *mockDocumentUC) Delete(ctx context.Context, name, id string, expected *domain.Version) error {
	return m.deleteFn(ctx, name, id, expected)
}

func (m *mockDocumentUC) DeleteAll(ctx context.Context, name string) (int, error) {
	return m.deleteAllFn(ctx, name)
}

func (m *mockDocumentUC) IsEmpty(ctx context.Context, name string) (bool, error) {
	return m.isEmptyFn(ctx, name)
}

// --- batchUseCase mock ---

type mockBatchUC struct {
	insertManyFn func(ctx context.Context, name string, items []domdoc.Document) []dombatch.Result
}

func (m *mockBatchUC) InsertMany(ctx context.Context, name string, items []domdoc.Document) []dombatch.Result {
	return m.insertManyFn(ctx, name, items)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	findFn    func(ctx context.Context, name string, req request.Request) (result.Response, error)
	findOneFn func(ctx context.Context, name string, lookup filter.Expression) (result.Item, error)
	countFn   func(ctx context.Context, name string, req request.Request) (int64, error)
}

func (m *mockSearchUC) Find(ctx context.Context, name string, req request.Request) (result.Response, error) {
	return m.findFn(ctx, name, req)
}

func (m *mockSearchUC) FindOne(ctx context.Context, name string, lookup filter.Expression) (result.Item, error) {
	return m.findOneFn(ctx, name, lookup)
}

func (m *mockSearchUC) Count(ctx context.Context, name string, req request.Request) (int64, error) {
	return m.countFn(ctx, name, req)
}

// --- resourcesUseCase mock ---

type mockResourcesUC struct {
	targets      []resource.Target
	mappingFn    func(name string) (json.RawMessage, error)
	ensureFn     func(ctx context.Context, names ...string) error
	putMappingFn func(ctx context.Context, name string) error
	dropFn       func(ctx context.Context, name string) error
}

func (m *mockResourcesUC) List() []resource.Target { return m.targets }

func (m *mockResourcesUC) Resolve(name string) (resource.Target, error) {
	for _, t := range m.targets {
		if t.Resource == name {
			return t, nil
		}
	}
	return resource.Target{}, domain.ErrNotFound
}

func (m *mockResourcesUC) Mapping(name string) (json.RawMessage, error) { return m.mappingFn(name) }

func (m *mockResourcesUC) Ensure(ctx context.Context, names ...string) error {
	return m.ensureFn(ctx, names...)
}

func (m *mockResourcesUC) PutMapping(ctx context.Context, name string) error {
	return m.putMappingFn(ctx, name)
}

func (m *mockResourcesUC) PutSettings(_ context.Context, _ string) error { return nil }

func (m *mockResourcesUC) Drop(ctx context.Context, name string) error { return m.dropFn(ctx, name) }

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

// --- helpers ---

func testClient(docSvc documentUseCase, batchSvc batchUseCase, searchSvc searchUseCase) *Client {
	return &Client{
		docSvc:    docSvc,
		batchSvc:  batchSvc,
		searchSvc: searchSvc,
	}
}
