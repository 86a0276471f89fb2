package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/eslayer/internal/db"
)

// docResponse is the common shape of get and write responses.
type docResponse struct {
	Index       string          `json:"_index"`
	Type        string          `json:"_type"`
	ID          string          `json:"_id"`
	Version     int64           `json:"_version"`
	SeqNo       int64           `json:"_seq_no"`
	PrimaryTerm int64           `json:"_primary_term"`
	Result      string          `json:"result"`
	Found       bool            `json:"found"`
	Source      json.RawMessage `json:"_source"`
}

func (r docResponse) meta() db.Meta {
	return db.Meta{
		ID:          r.ID,
		Index:       r.Index,
		Type:        r.Type,
		Version:     r.Version,
		SeqNo:       r.SeqNo,
		PrimaryTerm: r.PrimaryTerm,
		Result:      r.Result,
	}
}

func (r docResponse) document() db.Document {
	return db.Document{Meta: r.meta(), Found: r.Found, Source: r.Source}
}

func decodeMeta(op string, body []byte) (db.Meta, error) {
	var r docResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return db.Meta{}, &db.Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return r.meta(), nil
}

// GetDocument fetches a document by id. A missing document yields db.ErrDocumentNotFound.
func (s *Store) GetDocument(ctx context.Context, ref db.DocRef) (db.Document, error) {
	res, err := s.perform(ctx, db.OpGet, esapi.GetRequest{
		Index:        ref.Index,
		DocumentType: ref.Type,
		DocumentID:   ref.ID,
	})
	if err != nil {
		return db.Document{}, fmt.Errorf("get %s/%s: %w", ref.Index, ref.ID, err)
	}

	var r docResponse
	if err := json.Unmarshal(res.body, &r); err != nil {
		return db.Document{}, &db.Error{Op: db.OpGet, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !r.Found {
		return db.Document{}, &db.Error{Op: db.OpGet, Status: res.status, Err: db.ErrDocumentNotFound}
	}
	return r.document(), nil
}

// MultiGet fetches documents by id in request order. Missing documents have Found == false.
func (s *Store) MultiGet(ctx context.Context, index, docType string, ids []string) ([]db.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	res, err := s.perform(ctx, db.OpMultiGet, esapi.MgetRequest{
		Index:        index,
		DocumentType: docType,
		Body:         bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("mget %s: %w", index, err)
	}

	var r struct {
		Docs []docResponse `json:"docs"`
	}
	if err := json.Unmarshal(res.body, &r); err != nil {
		return nil, &db.Error{Op: db.OpMultiGet, Err: fmt.Errorf("decode response: %w", err)}
	}
	docs := make([]db.Document, 0, len(r.Docs))
	for _, d := range r.Docs {
		docs = append(docs, d.document())
	}
	return docs, nil
}

// IndexDocument creates or replaces a document.
func (s *Store) IndexDocument(ctx context.Context, ref db.DocRef, body []byte, opts db.WriteOptions) (db.Meta, error) {
	req := esapi.IndexRequest{
		Index:         ref.Index,
		DocumentType:  ref.Type,
		DocumentID:    ref.ID,
		Body:          bytes.NewReader(body),
		IfSeqNo:       intPtr(opts.IfSeqNo),
		IfPrimaryTerm: intPtr(opts.IfPrimaryTerm),
		Routing:       opts.Routing,
	}
	if opts.Create {
		req.OpType = "create"
	}

	res, err := s.perform(ctx, db.OpIndex, req)
	if err != nil {
		return db.Meta{}, fmt.Errorf("index %s/%s: %w", ref.Index, ref.ID, err)
	}
	return decodeMeta(db.OpIndex, res.body)
}

// UpdateDocument merges the partial document body into a stored document.
func (s *Store) UpdateDocument(ctx context.Context, ref db.DocRef, body []byte, opts db.WriteOptions) (db.Meta, error) {
	payload, err := json.Marshal(map[string]json.RawMessage{"doc": body})
	if err != nil {
		return db.Meta{}, fmt.Errorf("update: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:         ref.Index,
		DocumentType:  ref.Type,
		DocumentID:    ref.ID,
		Body:          bytes.NewReader(payload),
		IfSeqNo:       intPtr(opts.IfSeqNo),
		IfPrimaryTerm: intPtr(opts.IfPrimaryTerm),
		Routing:       opts.Routing,
	}
	// The engine rejects retry_on_conflict combined with an explicit version guard.
	if opts.RetryOnConflict > 0 && !opts.HasVersionCheck() {
		retries := opts.RetryOnConflict
		req.RetryOnConflict = &retries
	}

	res, err := s.perform(ctx, db.OpUpdate, req)
	if err != nil {
		return db.Meta{}, fmt.Errorf("update %s/%s: %w", ref.Index, ref.ID, err)
	}
	return decodeMeta(db.OpUpdate, res.body)
}

// DeleteDocument removes a document.
func (s *Store) DeleteDocument(ctx context.Context, ref db.DocRef, opts db.WriteOptions) (db.Meta, error) {
	res, err := s.perform(ctx, db.OpDelete, esapi.DeleteRequest{
		Index:         ref.Index,
		DocumentType:  ref.Type,
		DocumentID:    ref.ID,
		IfSeqNo:       intPtr(opts.IfSeqNo),
		IfPrimaryTerm: intPtr(opts.IfPrimaryTerm),
		Routing:       opts.Routing,
	})
	if err != nil {
		return db.Meta{}, fmt.Errorf("delete %s/%s: %w", ref.Index, ref.ID, err)
	}
	return decodeMeta(db.OpDelete, res.body)
}

// DeleteByQuery removes every document matching query and returns the deleted count.
// query is a complete query clause; nil matches all documents. A missing index deletes nothing.
func (s *Store) DeleteByQuery(ctx context.Context, index, docType string, query []byte) (int, error) {
	if len(query) == 0 {
		query = []byte(`{"match_all":{}}`)
	}
	body, err := json.Marshal(map[string]json.RawMessage{"query": query})
	if err != nil {
		return 0, fmt.Errorf("delete by query: %w", err)
	}

	req := esapi.DeleteByQueryRequest{
		Index:     []string{index},
		Body:      bytes.NewReader(body),
		Conflicts: "proceed",
	}
	if docType != "" {
		req.DocumentType = []string{docType}
	}

	res, err := s.perform(ctx, db.OpDeleteByQuery, req)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("delete by query %s: %w", index, err)
	}
	return int(gjson.GetBytes(res.body, "deleted").Int()), nil
}
