package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/eslayer/internal/db"
)

// Search executes a compiled query and returns the raw response body.
func (s *Store) Search(ctx context.Context, req *db.SearchRequest) ([]byte, error) {
	sr := esapi.SearchRequest{
		Index: req.Index,
		Body:  bytes.NewReader(req.Body),
	}
	if req.Type != "" {
		sr.DocumentType = []string{req.Type}
	}

	res, err := s.perform(ctx, db.OpSearch, sr)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res.body, nil
}

// Count returns the number of documents matching the query clause of req.
// Paging, sorting and aggregations in the body are ignored.
func (s *Store) Count(ctx context.Context, req *db.SearchRequest) (int, error) {
	cr := esapi.CountRequest{Index: req.Index}
	if req.Type != "" {
		cr.DocumentType = []string{req.Type}
	}
	if q := gjson.GetBytes(req.Body, "query"); q.Exists() {
		body, err := json.Marshal(map[string]json.RawMessage{"query": json.RawMessage(q.Raw)})
		if err != nil {
			return 0, fmt.Errorf("count: %w", err)
		}
		cr.Body = bytes.NewReader(body)
	}

	res, err := s.perform(ctx, db.OpCount, cr)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	count := gjson.GetBytes(res.body, "count")
	if !count.Exists() {
		return 0, &db.Error{Op: db.OpCount, Err: fmt.Errorf("response has no count")}
	}
	return int(count.Int()), nil
}
