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

// Bulk writes items in one request. Results are returned in item order;
// a failed item carries its error and does not fail the others.
func (s *Store) Bulk(ctx context.Context, index, docType string, items []db.BulkItem) ([]db.BulkResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	for i, item := range items {
		action := "index"
		if item.Create {
			action = "create"
		}
		meta := map[string]map[string]string{action: {}}
		if item.ID != "" {
			meta[action]["_id"] = item.ID
		}
		line, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("bulk item %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		buf.Write(bytes.TrimSpace(item.Body))
		buf.WriteByte('\n')
	}

	res, err := s.perform(ctx, db.OpBulk, esapi.BulkRequest{
		Index:        index,
		DocumentType: docType,
		Body:         &buf,
	})
	if err != nil {
		return nil, fmt.Errorf("bulk %s: %w", index, err)
	}
	return parseBulkResponse(res.body, len(items))
}

func parseBulkResponse(body []byte, want int) ([]db.BulkResult, error) {
	raw := gjson.GetBytes(body, "items")
	if !raw.IsArray() {
		return nil, &db.Error{Op: db.OpBulk, Err: fmt.Errorf("response has no items")}
	}

	results := make([]db.BulkResult, 0, want)
	raw.ForEach(func(_, item gjson.Result) bool {
		// Each item is a single-key object keyed by the action name.
		item.ForEach(func(_, v gjson.Result) bool {
			r := db.BulkResult{Meta: db.Meta{
				ID:          v.Get("_id").String(),
				Index:       v.Get("_index").String(),
				Type:        v.Get("_type").String(),
				Version:     v.Get("_version").Int(),
				SeqNo:       v.Get("_seq_no").Int(),
				PrimaryTerm: v.Get("_primary_term").Int(),
				Result:      v.Get("result").String(),
			}}
			if e := v.Get("error"); e.Exists() {
				r.Err = classifyItem(db.OpBulk, int(v.Get("status").Int()), e)
			}
			results = append(results, r)
			return false
		})
		return true
	})

	if len(results) != want {
		return nil, &db.Error{Op: db.OpBulk, Err: fmt.Errorf("response has %d items, sent %d", len(results), want)}
	}
	return results, nil
}
