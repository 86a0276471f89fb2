package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
	"github.com/kailas-cloud/eslayer/internal/repository/index"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	Search(ctx context.Context, req *db.SearchRequest) ([]byte, error)
	Count(ctx context.Context, req *db.SearchRequest) (int, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store      store
	compiler   *Compiler
	translator *Translator
}

// New creates a search repository.
func New(s store, c *Compiler, t *Translator) *Repo {
	return &Repo{store: s, compiler: c, translator: t}
}

// Find compiles req, runs it and translates the response. A missing index
// yields an empty page since nothing was ever written to it.
func (r *Repo) Find(ctx context.Context, def resource.Definition, t index.Target, req request.Request) (result.Response, error) {
	compiled, err := r.compiler.Compile(def, t, req)
	if err != nil {
		return result.Response{}, err
	}

	raw, err := r.store.Search(ctx, compiled.Request)
	if errors.Is(err, db.ErrIndexNotFound) {
		return result.Response{Items: []result.Item{}, Meta: result.Meta{MaxResults: compiled.Size}}, nil
	}
	if err != nil {
		return result.Response{}, fmt.Errorf("search %s: %w", def.Name(), engineErr(err))
	}
	return r.translator.Translate(raw, def, compiled.Size)
}

// Count returns the number of documents matching req, ignoring paging.
func (r *Repo) Count(ctx context.Context, def resource.Definition, t index.Target, req request.Request) (int64, error) {
	sr, err := r.compiler.CompileCount(def, t, req)
	if err != nil {
		return 0, err
	}
	n, err := r.store.Count(ctx, sr)
	if errors.Is(err, db.ErrIndexNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", def.Name(), engineErr(err))
	}
	return int64(n), nil
}

// engineErr lifts engine failures into domain errors.
func engineErr(err error) error {
	var dbErr *db.Error
	switch {
	case errors.Is(err, db.ErrUnavailable):
		op := db.OpSearch
		if errors.As(err, &dbErr) {
			op = dbErr.Op
		}
		return &domain.BackendUnavailableError{Op: op, Err: err}
	case errors.Is(err, db.ErrBadRequest):
		return fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	default:
		return err
	}
}
