package document

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kailas-cloud/eslayer/internal/domain"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/document/patch"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// MaxGetMany is the maximum number of ids per multi-get.
const MaxGetMany = 1000

// Service handles document CRUD with optimistic concurrency and the refresh policy.
type Service struct {
	repo         Repository
	resources    ResourceReader
	indexes      IndexResolver
	scope        Scoper
	counter      Counter
	forceRefresh bool
	newID        func() string
}

// New creates a document service. Writes refresh the index by default.
func New(repo Repository, resources ResourceReader, indexes IndexResolver, scope Scoper, counter Counter) *Service {
	return &Service{
		repo:         repo,
		resources:    resources,
		indexes:      indexes,
		scope:        scope,
		counter:      counter,
		forceRefresh: true,
		newID:        uuid.NewString,
	}
}

// WithForceRefresh sets the global refresh-after-write policy.
func (s *Service) WithForceRefresh(v bool) *Service {
	s.forceRefresh = v
	return s
}

// WithIDGenerator replaces the generator used for documents inserted without an id.
func (s *Service) WithIDGenerator(f func() string) *Service {
	if f != nil {
		s.newID = f
	}
	return s
}

// Insert stores a new document and returns its id and version.
// Documents without an id get a generated one.
func (s *Service) Insert(ctx context.Context, name string, doc domdoc.Document) (string, domain.Version, error) {
	def, t, err := s.writeTarget(ctx, name)
	if err != nil {
		return "", domain.Version{}, err
	}
	if !doc.HasID() {
		doc = doc.WithID(s.newID())
	}

	v, err := s.repo.Insert(ctx, def, t, doc)
	if err != nil {
		return "", domain.Version{}, fmt.Errorf("insert document: %w", err)
	}
	if err := s.refresh(ctx, def, t); err != nil {
		return "", domain.Version{}, err
	}
	return doc.ID(), v, nil
}

// Get returns a document by id.
func (s *Service) Get(ctx context.Context, name, id string) (result.Item, error) {
	def, t, err := s.readTarget(name)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.Get(ctx, def, t, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return item, nil
}

// GetMany returns the documents found among ids, in request order.
func (s *Service) GetMany(ctx context.Context, name string, ids []string) ([]result.Item, error) {
	if len(ids) > MaxGetMany {
		return nil, fmt.Errorf("too many ids (max %d): %w", MaxGetMany, domain.ErrInvalidQuery)
	}
	def, t, err := s.readTarget(name)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetMany(ctx, def, t, ids)
	if err != nil {
		return nil, fmt.Errorf("get documents: %w", err)
	}
	return items, nil
}

// Update merges p into the stored document. With expected nil the engine
// retries internal conflicts; otherwise a stale version fails with ConflictError.
func (s *Service) Update(
	ctx context.Context, name, id string, p patch.Patch, expected *domain.Version,
) (domain.Version, error) {
	def, t, err := s.writeTarget(ctx, name)
	if err != nil {
		return domain.Version{}, err
	}
	v, err := s.repo.Update(ctx, def, t, id, p, expected)
	if err != nil {
		return domain.Version{}, fmt.Errorf("update document: %w", err)
	}
	if err := s.refresh(ctx, def, t); err != nil {
		return domain.Version{}, err
	}
	return v, nil
}

// Replace overwrites a document.
func (s *Service) Replace(
	ctx context.Context, name string, doc domdoc.Document, expected *domain.Version,
) (domain.Version, error) {
	if err := domdoc.ValidateID(doc.ID()); err != nil {
		return domain.Version{}, fmt.Errorf("replace document: %w: %w", domain.ErrInvalidQuery, err)
	}
	def, t, err := s.writeTarget(ctx, name)
	if err != nil {
		return domain.Version{}, err
	}
	v, err := s.repo.Replace(ctx, def, t, doc, expected)
	if err != nil {
		return domain.Version{}, fmt.Errorf("replace document: %w", err)
	}
	if err := s.refresh(ctx, def, t); err != nil {
		return domain.Version{}, err
	}
	return v, nil
}

// Delete removes a document.
func (s *Service) Delete(ctx context.Context, name, id string, expected *domain.Version) error {
	def, t, err := s.readTarget(name)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, def, t, id, expected); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return s.refresh(ctx, def, t)
}

// DeleteAll removes every document of the resource and returns how many were deleted.
// On a shared index only documents stamped for the resource are removed.
func (s *Service) DeleteAll(ctx context.Context, name string) (int, error) {
	def, t, err := s.readTarget(name)
	if err != nil {
		return 0, err
	}
	query, err := s.scope.ScopeQuery(def, t)
	if err != nil {
		return 0, fmt.Errorf("build scope query: %w", err)
	}
	n, err := s.repo.DeleteAll(ctx, def, t, query)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	if n > 0 {
		if err := s.refresh(ctx, def, t); err != nil {
			return n, err
		}
	}
	return n, nil
}

// IsEmpty reports whether the resource holds no documents.
func (s *Service) IsEmpty(ctx context.Context, name string) (bool, error) {
	def, t, err := s.readTarget(name)
	if err != nil {
		return false, err
	}
	req, _ := request.New()
	n, err := s.counter.Count(ctx, def, t, req)
	if err != nil {
		return false, fmt.Errorf("count documents: %w", err)
	}
	return n == 0, nil
}

func (s *Service) readTarget(name string) (resource.Definition, resource.Target, error) {
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

// writeTarget resolves the resource and makes sure its index exists.
func (s *Service) writeTarget(ctx context.Context, name string) (resource.Definition, resource.Target, error) {
	def, t, err := s.readTarget(name)
	if err != nil {
		return def, t, err
	}
	if err := s.indexes.EnsureIndex(ctx, name); err != nil {
		return resource.Definition{}, resource.Target{}, fmt.Errorf("ensure index: %w", err)
	}
	return def, t, nil
}

func (s *Service) refresh(ctx context.Context, def resource.Definition, t resource.Target) error {
	if !def.RefreshAfterWrite(s.forceRefresh) {
		return nil
	}
	if err := s.repo.Refresh(ctx, t); err != nil {
		return fmt.Errorf("refresh after write: %w", err)
	}
	return nil
}
