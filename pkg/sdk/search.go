package eslayer

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/eslayer/internal/domain/search/filter"
)

// SearchService executes queries against a single resource.
type SearchService struct {
	resource string
	svc      searchUseCase
	obs      *observer
}

// Find returns one page of documents matching q. A nil q matches everything.
func (s *SearchService) Find(ctx context.Context, q *Query) (page Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("find", s.resource, start, err) }()

	req, err := q.build()
	if err != nil {
		return Page{}, fmt.Errorf("find: %w", err)
	}
	page, err = s.svc.Find(ctx, s.resource, req)
	if err != nil {
		return Page{}, fmt.Errorf("find: %w", err)
	}
	return page, nil
}

// FindOne returns the first document whose fields equal lookup.
// No match fails with ErrNotFound.
func (s *SearchService) FindOne(ctx context.Context, lookup Fields) (item Item, err error) {
	start := time.Now()
	defer func() { s.obs.observe("find_one", s.resource, start, err) }()

	expr, err := filter.FromMap(lookup)
	if err != nil {
		return nil, fmt.Errorf("find one: %w", err)
	}
	item, err = s.svc.FindOne(ctx, s.resource, expr)
	if err != nil {
		return nil, fmt.Errorf("find one: %w", err)
	}
	return item, nil
}

// Count returns the number of documents matching q.
func (s *SearchService) Count(ctx context.Context, q *Query) (n int64, err error) {
	start := time.Now()
	defer func() { s.obs.observe("count", s.resource, start, err) }()

	req, err := q.build()
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	n, err = s.svc.Count(ctx, s.resource, req)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Query returns a fluent query builder bound to this resource.
func (s *SearchService) Query() *Query {
	return &Query{svc: s}
}
