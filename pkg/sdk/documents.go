package eslayer

import (
	"context"
	"fmt"
	"time"

	dombatch "github.com/kailas-cloud/eslayer/internal/domain/batch"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/document/patch"
)

// DocumentService manages documents of a single resource.
type DocumentService struct {
	resource string
	docSvc   documentUseCase
	batchSvc batchUseCase
	obs      *observer
}

// Insert creates a document. An "_id" key in fields sets the id; without
// it one is generated. An existing id fails with ErrAlreadyExists.
func (s *DocumentService) Insert(ctx context.Context, fields Fields) (id string, v Version, err error) {
	start := time.Now()
	defer func() { s.obs.observe("insert", s.resource, start, err) }()

	d, err := toInternalDocument(fields)
	if err != nil {
		return "", Version{}, fmt.Errorf("insert: %w", err)
	}
	id, v, err = s.docSvc.Insert(ctx, s.resource, d)
	if err != nil {
		return "", Version{}, fmt.Errorf("insert: %w", err)
	}
	return id, v, nil
}

// InsertMany creates documents in one bulk request. Items succeed or fail
// independently; results are in input order.
func (s *DocumentService) InsertMany(ctx context.Context, items []Fields) (results []BatchResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("insert_many", s.resource, start, err) }()

	docs := make([]domdoc.Document, len(items))
	for i, f := range items {
		docs[i], err = toInternalDocument(f)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return fromBatchResults(s.batchSvc.InsertMany(ctx, s.resource, docs)), nil
}

// Get retrieves a document by id.
func (s *DocumentService) Get(ctx context.Context, id string) (item Item, err error) {
	start := time.Now()
	defer func() { s.obs.observe("get", s.resource, start, err) }()

	item, err = s.docSvc.Get(ctx, s.resource, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return item, nil
}

// GetMany retrieves documents by id in one request. Missing ids are skipped.
func (s *DocumentService) GetMany(ctx context.Context, ids []string) (items []Item, err error) {
	start := time.Now()
	defer func() { s.obs.observe("get_many", s.resource, start, err) }()

	items, err = s.docSvc.GetMany(ctx, s.resource, ids)
	if err != nil {
		return nil, fmt.Errorf("get documents: %w", err)
	}
	return items, nil
}

// Update merges changes into a stored document. With expected set, a
// stale version fails with *ConflictError.
func (s *DocumentService) Update(
	ctx context.Context, id string, changes Fields, expected *Version,
) (v Version, err error) {
	start := time.Now()
	defer func() { s.obs.observe("update", s.resource, start, err) }()

	p, err := patch.New(changes)
	if err != nil {
		return Version{}, fmt.Errorf("update: %w", err)
	}
	v, err = s.docSvc.Update(ctx, s.resource, id, p, expected)
	if err != nil {
		return Version{}, fmt.Errorf("update: %w", err)
	}
	return v, nil
}

// Replace overwrites a stored document with fields.
func (s *DocumentService) Replace(
	ctx context.Context, id string, fields Fields, expected *Version,
) (v Version, err error) {
	start := time.Now()
	defer func() { s.obs.observe("replace", s.resource, start, err) }()

	d, err := domdoc.New(id, fields)
	if err != nil {
		return Version{}, fmt.Errorf("replace: %w", err)
	}
	v, err = s.docSvc.Replace(ctx, s.resource, d, expected)
	if err != nil {
		return Version{}, fmt.Errorf("replace: %w", err)
	}
	return v, nil
}

// Delete removes a document by id.
func (s *DocumentService) Delete(ctx context.Context, id string, expected *Version) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("delete", s.resource, start, err) }()

	if err = s.docSvc.Delete(ctx, s.resource, id, expected); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// DeleteAll removes every document of the resource and returns the count.
func (s *DocumentService) DeleteAll(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { s.obs.observe("delete_all", s.resource, start, err) }()

	n, err = s.docSvc.DeleteAll(ctx, s.resource)
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return n, nil
}

// IsEmpty reports whether the resource holds no documents.
func (s *DocumentService) IsEmpty(ctx context.Context) (empty bool, err error) {
	start := time.Now()
	defer func() { s.obs.observe("is_empty", s.resource, start, err) }()

	empty, err = s.docSvc.IsEmpty(ctx, s.resource)
	if err != nil {
		return false, fmt.Errorf("is empty: %w", err)
	}
	return empty, nil
}

func toInternalDocument(f Fields) (domdoc.Document, error) {
	doc, err := domdoc.New("", f)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("validate document: %w", err)
	}
	return doc, nil
}

func fromBatchResults(results []dombatch.Result) []BatchResult {
	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{
			ID:      r.ID(),
			Version: r.Version(),
			OK:      r.Status() == dombatch.StatusCreated,
			Err:     r.Err(),
		}
	}
	return out
}
