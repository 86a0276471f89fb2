package result

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/eslayer/internal/domain"
)

// Reserved item keys carrying engine metadata.
const (
	FieldID          = "_id"
	FieldVersion     = "_version"
	FieldSeqNo       = "_seq_no"
	FieldPrimaryTerm = "_primary_term"
	FieldETag        = "_etag"
	FieldIndex       = "_index"
	FieldType        = "_type"
	FieldScore       = "_score"
	FieldHighlight   = "es_highlight"
)

// Warning kinds for degraded responses.
const (
	WarningTimedOut      = "timed_out"
	WarningShardFailures = "shard_failures"
)

// Item is one document in framework shape: source fields plus reserved metadata.
type Item map[string]any

// ID returns the document id.
func (it Item) ID() string {
	s, _ := it[FieldID].(string)
	return s
}

// Version returns the concurrency token carried by the item.
func (it Item) Version() (domain.Version, bool) {
	seq, ok1 := toInt64(it[FieldSeqNo])
	term, ok2 := toInt64(it[FieldPrimaryTerm])
	if !ok1 || !ok2 {
		return domain.Version{}, false
	}
	v, _ := toInt64(it[FieldVersion])
	return domain.Version{SeqNo: seq, PrimaryTerm: term, Version: v}, true
}

// SetVersion stamps the concurrency token onto the item.
func (it Item) SetVersion(v domain.Version) {
	it[FieldSeqNo] = v.SeqNo
	it[FieldPrimaryTerm] = v.PrimaryTerm
	it[FieldVersion] = v.Version
	it[FieldETag] = v.ETag()
}

// Source returns the item without reserved metadata keys.
func (it Item) Source() map[string]any {
	out := make(map[string]any, len(it))
	for k, v := range it {
		if !IsReserved(k) {
			out[k] = v
		}
	}
	return out
}

// IsReserved reports whether key is engine metadata.
func IsReserved(key string) bool {
	switch key {
	case FieldID, FieldVersion, FieldSeqNo, FieldPrimaryTerm, FieldETag,
		FieldIndex, FieldType, FieldScore, FieldHighlight:
		return true
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

// Bucket is one facet bucket.
type Bucket struct {
	Key         any    `json:"key"`
	KeyAsString string `json:"key_as_string,omitempty"`
	Count       int64  `json:"doc_count"`
}

// Warning flags a partial response that is still usable.
type Warning struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Meta is the response metadata.
type Meta struct {
	Total        int64                      `json:"total"`
	Count        int                        `json:"count"`
	MaxResults   int                        `json:"max_results"`
	Facets       map[string][]Bucket        `json:"facets,omitempty"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
	Warnings     []Warning                  `json:"warnings,omitempty"`
}

// Response is the translated search response.
type Response struct {
	Items []Item `json:"items"`
	Meta  Meta   `json:"meta"`
}

// Validate checks the count invariants.
func (r Response) Validate() error {
	if r.Meta.Count != len(r.Items) {
		return fmt.Errorf("count %d does not match %d items", r.Meta.Count, len(r.Items))
	}
	if r.Meta.Total < int64(r.Meta.Count) {
		return fmt.Errorf("total %d is less than count %d", r.Meta.Total, r.Meta.Count)
	}
	return nil
}

// Partial reports whether the engine flagged the response as degraded.
func (r Response) Partial() bool { return len(r.Meta.Warnings) > 0 }
