package eslayer

import (
	"context"
	"fmt"
)

// Index is a typed handle on one resource. T is a struct encoded with
// encoding/json; a string field tagged `eslayer:"id"` carries the document id.
type Index[T any] struct {
	name   string
	client *Client
	meta   *schemaMeta
}

// Hit is a typed document with its concurrency token.
type Hit[T any] struct {
	Item    T
	Version Version
}

// NewIndex creates a typed handle for the given resource. T's tags are
// parsed once and cached.
func NewIndex[T any](client *Client, resource string) (*Index[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new index %q: %w", resource, err)
	}
	return &Index[T]{name: resource, client: client, meta: meta}, nil
}

// Ensure creates the resource's index if it does not exist (idempotent).
func (idx *Index[T]) Ensure(ctx context.Context) error {
	if err := idx.client.Resources().EnsureIndex(ctx, idx.name); err != nil {
		return fmt.Errorf("ensure %q: %w", idx.name, err)
	}
	return nil
}

// Insert stores a new item and returns its id.
func (idx *Index[T]) Insert(ctx context.Context, item T) (string, Version, error) {
	f, id, err := idx.meta.toFields(item)
	if err != nil {
		return "", Version{}, fmt.Errorf("insert: %w", err)
	}
	if id != "" {
		f["_id"] = id
	}
	return idx.client.Documents(idx.name).Insert(ctx, f)
}

// InsertMany stores items in one bulk request.
func (idx *Index[T]) InsertMany(ctx context.Context, items []T) ([]BatchResult, error) {
	docs := make([]Fields, len(items))
	for i, item := range items {
		f, id, err := idx.meta.toFields(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if id != "" {
			f["_id"] = id
		}
		docs[i] = f
	}
	return idx.client.Documents(idx.name).InsertMany(ctx, docs)
}

// Get retrieves a typed item by id.
func (idx *Index[T]) Get(ctx context.Context, id string) (Hit[T], error) {
	it, err := idx.client.Documents(idx.name).Get(ctx, id)
	if err != nil {
		return Hit[T]{}, fmt.Errorf("get: %w", err)
	}
	return idx.toHit(it)
}

// Replace overwrites the stored item with the same id.
func (idx *Index[T]) Replace(ctx context.Context, item T, expected *Version) (Version, error) {
	f, id, err := idx.meta.toFields(item)
	if err != nil {
		return Version{}, fmt.Errorf("replace: %w", err)
	}
	return idx.client.Documents(idx.name).Replace(ctx, id, f, expected)
}

// Update merges changes into the stored item.
func (idx *Index[T]) Update(ctx context.Context, id string, changes Fields, expected *Version) (Version, error) {
	return idx.client.Documents(idx.name).Update(ctx, id, changes, expected)
}

// Delete removes an item by id.
func (idx *Index[T]) Delete(ctx context.Context, id string, expected *Version) error {
	return idx.client.Documents(idx.name).Delete(ctx, id, expected)
}

// Query returns a query builder for Find.
func (idx *Index[T]) Query() *Query {
	return idx.client.Search(idx.name).Query()
}

// Find runs q and decodes the page. It also returns the total match count.
func (idx *Index[T]) Find(ctx context.Context, q *Query) ([]Hit[T], int64, error) {
	page, err := idx.client.Search(idx.name).Find(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	hits := make([]Hit[T], 0, len(page.Items))
	for _, it := range page.Items {
		h, err := idx.toHit(it)
		if err != nil {
			return nil, 0, fmt.Errorf("find: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, page.Meta.Total, nil
}

func (idx *Index[T]) toHit(it Item) (Hit[T], error) {
	v, err := idx.meta.fromItem(it)
	if err != nil {
		return Hit[T]{}, err
	}
	item, ok := v.(T)
	if !ok {
		return Hit[T]{}, fmt.Errorf("decode: type assertion failed")
	}
	ver, _ := it.Version()
	return Hit[T]{Item: item, Version: ver}, nil
}
