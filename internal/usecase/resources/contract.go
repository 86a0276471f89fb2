package resources

import (
	"context"

	"github.com/kailas-cloud/eslayer/internal/domain/resource"
)

// IndexManager resolves resources to indexes and provisions them.
type IndexManager interface {
	Resolve(name string) (resource.Target, error)
	Targets() []resource.Target
	MappingJSON(name string) ([]byte, error)
	EnsureIndex(ctx context.Context, name string) error
	InitIndexes(ctx context.Context) error
	PutMapping(ctx context.Context, name string) error
	PutSettings(ctx context.Context, name string) error
	DropIndex(ctx context.Context, name string) error
}
