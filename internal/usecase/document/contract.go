package document

import (
	"context"

	"github.com/kailas-cloud/eslayer/internal/domain"
	domdoc "github.com/kailas-cloud/eslayer/internal/domain/document"
	"github.com/kailas-cloud/eslayer/internal/domain/document/patch"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// Repository defines the storage contract for documents.
type Repository interface {
	Insert(ctx context.Context, def resource.Definition, t resource.Target, doc domdoc.Document) (domain.Version, error)
	Replace(
		ctx context.Context, def resource.Definition, t resource.Target, doc domdoc.Document, expected *domain.Version,
	) (domain.Version, error)
	Update(
		ctx context.Context, def resource.Definition, t resource.Target, id string, p patch.Patch, expected *domain.Version,
	) (domain.Version, error)
	Delete(ctx context.Context, def resource.Definition, t resource.Target, id string, expected *domain.Version) error
	Get(ctx context.Context, def resource.Definition, t resource.Target, id string) (result.Item, error)
	GetMany(ctx context.Context, def resource.Definition, t resource.Target, ids []string) ([]result.Item, error)
	DeleteAll(ctx context.Context, def resource.Definition, t resource.Target, query []byte) (int, error)
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

// Scoper builds the query selecting every document of a resource.
type Scoper interface {
	ScopeQuery(def resource.Definition, t resource.Target) ([]byte, error)
}

// Counter counts documents matching a query descriptor.
type Counter interface {
	Count(ctx context.Context, def resource.Definition, t resource.Target, req request.Request) (int64, error)
}
