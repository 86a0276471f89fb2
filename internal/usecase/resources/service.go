package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/eslayer/internal/domain/resource"
)

// Service exposes resource resolution and index lifecycle to tooling.
type Service struct {
	indexes IndexManager
	logger  *zap.Logger
}

// New creates a resources service.
func New(indexes IndexManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{indexes: indexes, logger: logger}
}

// List returns every resolved resource sorted by name.
func (s *Service) List() []resource.Target {
	return s.indexes.Targets()
}

// Resolve returns where a resource's documents live.
func (s *Service) Resolve(name string) (resource.Target, error) {
	t, err := s.indexes.Resolve(name)
	if err != nil {
		return resource.Target{}, fmt.Errorf("resolve: %w", err)
	}
	return t, nil
}

// Mapping returns the index mapping body a resource resolves to.
func (s *Service) Mapping(name string) (json.RawMessage, error) {
	raw, err := s.indexes.MappingJSON(name)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	return raw, nil
}

// Ensure provisions the indexes of the named resources, or of all resources
// when none are named. The first failure stops the run.
func (s *Service) Ensure(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		if err := s.indexes.InitIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		return nil
	}
	for _, name := range names {
		if err := s.indexes.EnsureIndex(ctx, name); err != nil {
			return fmt.Errorf("ensure %s: %w", name, err)
		}
	}
	return nil
}

// PutMapping pushes the declared mapping of a resource to its existing index.
func (s *Service) PutMapping(ctx context.Context, name string) error {
	if err := s.indexes.PutMapping(ctx, name); err != nil {
		return fmt.Errorf("put mapping %s: %w", name, err)
	}
	s.logger.Info("Mapping updated", zap.String("resource", name))
	return nil
}

// PutSettings pushes the declared updatable settings of a resource.
func (s *Service) PutSettings(ctx context.Context, name string) error {
	if err := s.indexes.PutSettings(ctx, name); err != nil {
		return fmt.Errorf("put settings %s: %w", name, err)
	}
	s.logger.Info("Settings updated", zap.String("resource", name))
	return nil
}

// Drop deletes the index of a resource. Every resource sharing it loses its
// documents too.
func (s *Service) Drop(ctx context.Context, name string) error {
	if err := s.indexes.DropIndex(ctx, name); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	s.logger.Warn("Index dropped", zap.String("resource", name))
	return nil
}
