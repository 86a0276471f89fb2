package db

import (
	"context"
	"time"
)

// Store is the engine facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	IndexManager
	DocumentStore
	Searcher
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks engine connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	PutMapping(ctx context.Context, index, docType string, mapping []byte) error
	PutSettings(ctx context.Context, index string, settings []byte) error
	Refresh(ctx context.Context, index string) error
}

// DocumentStore provides single and multi document operations.
//
//nolint:interfacebloat // CRUD surface of the engine
type DocumentStore interface {
	GetDocument(ctx context.Context, ref DocRef) (Document, error)
	MultiGet(ctx context.Context, index, docType string, ids []string) ([]Document, error)
	IndexDocument(ctx context.Context, ref DocRef, body []byte, opts WriteOptions) (Meta, error)
	UpdateDocument(ctx context.Context, ref DocRef, body []byte, opts WriteOptions) (Meta, error)
	DeleteDocument(ctx context.Context, ref DocRef, opts WriteOptions) (Meta, error)
	DeleteByQuery(ctx context.Context, index, docType string, query []byte) (int, error)
	Bulk(ctx context.Context, index, docType string, items []BulkItem) ([]BulkResult, error)
}

// Searcher provides query execution.
type Searcher interface {
	Search(ctx context.Context, req *SearchRequest) ([]byte, error)
	Count(ctx context.Context, req *SearchRequest) (int, error)
}
