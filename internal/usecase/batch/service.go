package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kailas-cloud/eslayer/internal/domain"
	dombatch "github.com/kailas-cloud/eslayer/internal/domain/batch"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
)

// MaxBatchSize is the default maximum number of items per bulk insert.
const MaxBatchSize = 500

// Service handles bulk inserts with per-item error reporting.
type Service struct {
	docs         BulkInserter
	resources    ResourceReader
	indexes      IndexResolver
	maxBatchSize int
	forceRefresh bool
	newID        func() string
}

// New creates a batch service.
func New(docs BulkInserter, resources ResourceReader, indexes IndexResolver) *Service {
	return &Service{
		docs:         docs,
		resources:    resources,
		indexes:      indexes,
		maxBatchSize: MaxBatchSize,
		forceRefresh: true,
		newID:        uuid.NewString,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithForceRefresh sets the global refresh-after-write policy.
func (s *Service) WithForceRefresh(v bool) *Service {
	s.forceRefresh = v
	return s
}

// WithIDGenerator replaces the generator used for items without an id.
func (s *Service) WithIDGenerator(f func() string) *Service {
	if f != nil {
		s.newID = f
	}
	return s
}

// InsertMany creates documents in one bulk request. The write is not atomic:
// results report each item separately, in input order.
func (s *Service) InsertMany(ctx context.Context, name string, items []domdoc.Document) []dombatch.Result {
	docs := make([]domdoc.Document, len(items))
	for i, item := range items {
		if !item.HasID() {
			item = item.WithID(s.newID())
		}
		docs[i] = item
	}

	if len(docs) > s.maxBatchSize {
		return failAll(docs, fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidQuery))
	}
	if len(docs) == 0 {
		return []dombatch.Result{}
	}

	def, err := s.resources.Get(name)
	if err != nil {
		return failAll(docs, fmt.Errorf("get resource: %w", err))
	}
	t, err := s.indexes.Resolve(name)
	if err != nil {
		return failAll(docs, fmt.Errorf("resolve index: %w", err))
	}
	if err := s.indexes.EnsureIndex(ctx, name); err != nil {
		return failAll(docs, fmt.Errorf("ensure index: %w", err))
	}

	results, err := s.docs.InsertMany(ctx, def, t, docs)
	if err != nil {
		return results
	}

	if dombatch.Failed(results) < len(results) && def.RefreshAfterWrite(s.forceRefresh) {
		if err := s.docs.Refresh(ctx, t); err != nil {
			// Items are stored; report the refresh failure on each created one.
			for i, r := range results {
				if r.Err() == nil {
					results[i] = dombatch.NewError(r.ID(), fmt.Errorf("refresh after write: %w", err))
				}
			}
		}
	}
	return results
}

func failAll(docs []domdoc.Document, err error) []dombatch.Result {
	results := make([]dombatch.Result, len(docs))
	for i, d := range docs {
		results[i] = dombatch.NewError(d.ID(), err)
	}
	return results
}
