package search

import (
	"context"

	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	Find(ctx context.Context, def resource.Definition, t resource.Target, req request.Request) (result.Response, error)
	Count(ctx context.Context, def resource.Definition, t resource.Target, req request.Request) (int64, error)
}

// ResourceReader looks up registered resource definitions.
type ResourceReader interface {
	Get(name string) (resource.Definition, error)
}

// IndexResolver maps resources to indexes.
type IndexResolver interface {
	Resolve(name string) (resource.Target, error)
}
