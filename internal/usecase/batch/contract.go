package batch

import (
	"context"

	dombatch "github.com/kailas-cloud/eslayer/internal/domain/batch"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
)

// BulkInserter writes many new documents in one request.
type BulkInserter interface {
	InsertMany(ctx context.Context, def resource.Definition, t resource.Target, docs []domdoc.Document) ([]dombatch.Result, error)
	Refresh(ctx context.Context, t resource.Target) error
}

// ResourceReader looks up registered resource definitions.
type ResourceReader interface {
	Get(name string) (resource.Definition, error)
}

// IndexResolver maps resources to indexes and provisions them on demand.
type IndexResolver interface {
	Resolve(name string) (resource.Target, error)
	EnsureIndex(ctx context.Context, name string) error
}
