package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/filter"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// Service runs resource queries.
type Service struct {
	repo      Repository
	resources ResourceReader
	indexes   IndexResolver
}

// New creates a search service.
func New(repo Repository, resources ResourceReader, indexes IndexResolver) *Service {
	return &Service{repo: repo, resources: resources, indexes: indexes}
}

// Find runs req against the resource and returns one page of items.
func (s *Service) Find(ctx context.Context, name string, req request.Request) (result.Response, error) {
	def, t, err := s.target(name)
	if err != nil {
		return result.Response{}, err
	}
	resp, err := s.repo.Find(ctx, def, t, req)
	if err != nil {
		return result.Response{}, fmt.Errorf("find %s: %w", name, err)
	}
	return resp, nil
}

// FindOne returns the first document matching lookup. No match is ErrNotFound.
func (s *Service) FindOne(ctx context.Context, name string, lookup filter.Expression) (result.Item, error) {
	req, err := request.New(request.WithLookup(lookup), request.WithLimit(1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	resp, err := s.Find(ctx, name, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("find one %s: %w", name, domain.ErrNotFound)
	}
	return resp.Items[0], nil
}

// Count returns the number of documents matching req, ignoring paging.
func (s *Service) Count(ctx context.Context, name string, req request.Request) (int64, error) {
	def, t, err := s.target(name)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.Count(ctx, def, t, req)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

func (s *Service) target(name string) (resource.Definition, resource.Target, error) {
	def, err := s.resources.Get(name)
	if err != nil {
		return resource.Definition{}, resource.Target{}, fmt.Errorf("get resource: %w", err)
	}
	t, err := s.indexes.Resolve(name)
	if err != nil {
		return resource.Definition{}, resource.Target{}, fmt.Errorf("resolve index: %w", err)
	}
	return def, t, nil
}
