package elastic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/kailas-cloud/eslayer/internal/db"
)

// CreateIndex creates an index. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	body, err := def.Body()
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	if _, err := s.perform(ctx, db.OpCreateIndex, esapi.IndicesCreateRequest{
		Index: def.Name,
		Body:  bytes.NewReader(body),
	}); err != nil {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// DropIndex deletes an index. A missing index is not an error.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	_, err := s.perform(ctx, db.OpDeleteIndex, esapi.IndicesDeleteRequest{Index: []string{name}})
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return nil
}

// IndexExists checks whether an index (or alias) exists.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := s.perform(ctx, db.OpIndexExists, esapi.IndicesExistsRequest{Index: []string{name}})
	switch {
	case res.status == http.StatusNotFound:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("index exists %s: %w", name, err)
	default:
		return true, nil
	}
}

// PutMapping updates the mapping of an existing index. docType is empty for typeless engines.
func (s *Store) PutMapping(ctx context.Context, index, docType string, mapping []byte) error {
	if _, err := s.perform(ctx, db.OpPutMapping, esapi.IndicesPutMappingRequest{
		Index:        []string{index},
		DocumentType: docType,
		Body:         bytes.NewReader(mapping),
	}); err != nil {
		return fmt.Errorf("put mapping %s: %w", index, err)
	}
	return nil
}

// PutSettings closes the index, applies the settings and reopens it.
// Analysis settings can only be changed on a closed index.
func (s *Store) PutSettings(ctx context.Context, index string, settings []byte) (err error) {
	if _, err := s.perform(ctx, db.OpCloseIndex, esapi.IndicesCloseRequest{Index: []string{index}}); err != nil {
		return fmt.Errorf("put settings %s: %w", index, err)
	}
	defer func() {
		if _, openErr := s.perform(ctx, db.OpOpenIndex, esapi.IndicesOpenRequest{Index: []string{index}}); openErr != nil {
			err = errors.Join(err, fmt.Errorf("put settings %s: %w", index, openErr))
		}
	}()

	if _, err := s.perform(ctx, db.OpPutSettings, esapi.IndicesPutSettingsRequest{
		Index: []string{index},
		Body:  bytes.NewReader(settings),
	}); err != nil {
		return fmt.Errorf("put settings %s: %w", index, err)
	}
	return nil
}

// Refresh makes recent writes visible to search.
func (s *Store) Refresh(ctx context.Context, index string) error {
	if _, err := s.perform(ctx, db.OpRefresh, esapi.IndicesRefreshRequest{Index: []string{index}}); err != nil {
		return fmt.Errorf("refresh %s: %w", index, err)
	}
	return nil
}
