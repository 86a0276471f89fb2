package eslayer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/eslayer/internal/domain/resource"
)

// ResourceService exposes resource resolution and index management.
type ResourceService struct {
	svc resourcesUseCase
	obs *observer
}

// List returns every declared resource in name order.
func (s *ResourceService) List() []ResourceInfo {
	targets := s.svc.List()
	out := make([]ResourceInfo, len(targets))
	for i, t := range targets {
		out[i] = fromTarget(t)
	}
	return out
}

// Resolve returns where a resource's documents live.
func (s *ResourceService) Resolve(name string) (ResourceInfo, error) {
	t, err := s.svc.Resolve(name)
	if err != nil {
		return ResourceInfo{}, fmt.Errorf("resolve: %w", err)
	}
	return fromTarget(t), nil
}

// Mapping returns the index mapping produced by the resource's schema.
func (s *ResourceService) Mapping(name string) (json.RawMessage, error) {
	raw, err := s.svc.Mapping(name)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	return raw, nil
}

// EnsureIndex creates the resource's index when it does not exist.
func (s *ResourceService) EnsureIndex(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("ensure_index", name, start, err) }()

	if err = s.svc.Ensure(ctx, name); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}

// InitIndexes creates every missing index.
func (s *ResourceService) InitIndexes(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("init_indexes", "", start, err) }()

	if err = s.svc.Ensure(ctx); err != nil {
		return fmt.Errorf("init indexes: %w", err)
	}
	return nil
}

// PutMapping pushes the declared mapping to the existing index.
func (s *ResourceService) PutMapping(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("put_mapping", name, start, err) }()

	if err = s.svc.PutMapping(ctx, name); err != nil {
		return fmt.Errorf("put mapping: %w", err)
	}
	return nil
}

// PutSettings pushes the declared updatable settings to the existing index.
func (s *ResourceService) PutSettings(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("put_settings", name, start, err) }()

	if err = s.svc.PutSettings(ctx, name); err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// Drop deletes the resource's index with every document in it, including
// documents of other resources sharing the index.
func (s *ResourceService) Drop(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("drop", name, start, err) }()

	if err = s.svc.Drop(ctx, name); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	return nil
}

func fromTarget(t resource.Target) ResourceInfo {
	return ResourceInfo{
		Resource: t.Resource,
		Source:   t.Source,
		Index:    t.Index,
		Type:     t.Type,
		Shared:   t.Shared,
	}
}
