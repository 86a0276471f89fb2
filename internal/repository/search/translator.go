package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/dialect"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// Translator reshapes raw engine search responses into framework responses.
type Translator struct {
	variant dialect.Variant
}

// NewTranslator creates a translator.
func NewTranslator(variant dialect.Variant) *Translator {
	return &Translator{variant: variant}
}

// Translate parses a raw search response. maxResults is the page size the
// query was compiled with.
func (t *Translator) Translate(raw []byte, def resource.Definition, maxResults int) (result.Response, error) {
	if !gjson.ValidBytes(raw) {
		return result.Response{}, domain.NewTranslationError(def.Name(), "response is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)

	hits := doc.Get("hits.hits")
	if !hits.IsArray() {
		return result.Response{}, domain.NewTranslationError(def.Name(), "hits.hits is not an array")
	}

	dates := dateFields(def)
	items := make([]result.Item, 0, len(hits.Array()))
	for i, hit := range hits.Array() {
		item, err := t.item(hit, dates)
		if err != nil {
			return result.Response{}, domain.NewTranslationError(def.Name(), "hit %d: %v", i, err)
		}
		items = append(items, item)
	}

	total := int64(len(items))
	if tv := doc.Get("hits.total"); tv.Exists() {
		if tv.IsObject() {
			tv = tv.Get("value")
		}
		if tv.Type != gjson.Number {
			return result.Response{}, domain.NewTranslationError(def.Name(), "hits.total is not a number")
		}
		total = tv.Int()
	}
	if total < int64(len(items)) {
		return result.Response{}, domain.NewTranslationError(def.Name(), "total %d is less than %d returned hits", total, len(items))
	}

	facets, aggs := aggregations(doc.Get("aggregations"))
	return result.Response{
		Items: items,
		Meta: result.Meta{
			Total:        total,
			Count:        len(items),
			MaxResults:   maxResults,
			Facets:       facets,
			Aggregations: aggs,
			Warnings:     warnings(doc),
		},
	}, nil
}

func (t *Translator) item(hit gjson.Result, dates [][]string) (result.Item, error) {
	if !hit.IsObject() {
		return nil, fmt.Errorf("not an object")
	}
	id := hit.Get("_id")
	if id.Type != gjson.String || id.String() == "" {
		return nil, fmt.Errorf("missing _id")
	}

	item := result.Item{}
	if src := hit.Get("_source"); src.Exists() {
		if !src.IsObject() {
			return nil, fmt.Errorf("_source is not an object")
		}
		if err := decodeInto(src.Raw, &item); err != nil {
			return nil, fmt.Errorf("decode _source: %w", err)
		}
		for _, path := range dates {
			parseDates(map[string]any(item), path)
		}
		delete(item, resource.FieldResource)
	}

	item[result.FieldID] = id.String()
	if v := hit.Get("_index"); v.Exists() {
		item[result.FieldIndex] = v.String()
	}
	if v := hit.Get("_type"); v.Exists() && t.variant.ExposeType() {
		item[result.FieldType] = v.String()
	}
	if v := hit.Get("_score"); v.Type == gjson.Number {
		item[result.FieldScore] = v.Float()
	}
	if v := hit.Get("_version"); v.Exists() {
		item[result.FieldVersion] = v.Int()
	}
	seq, term := hit.Get("_seq_no"), hit.Get("_primary_term")
	if seq.Exists() && term.Exists() {
		item.SetVersion(domain.Version{SeqNo: seq.Int(), PrimaryTerm: term.Int(), Version: hit.Get("_version").Int()})
	}
	if h := hit.Get("highlight"); h.IsObject() {
		var m map[string]any
		if err := decodeInto(h.Raw, &m); err == nil {
			item[result.FieldHighlight] = m
		}
	}
	return item, nil
}

// Document reshapes a document fetched by id into an item.
func (t *Translator) Document(def resource.Definition, doc db.Document) (result.Item, error) {
	item := result.Item{}
	if len(doc.Source) > 0 {
		if !gjson.ParseBytes(doc.Source).IsObject() {
			return nil, domain.NewTranslationError(def.Name(), "document %s: _source is not an object", doc.ID)
		}
		if err := decodeInto(string(doc.Source), &item); err != nil {
			return nil, domain.NewTranslationError(def.Name(), "document %s: decode _source: %v", doc.ID, err)
		}
		for _, path := range dateFields(def) {
			parseDates(map[string]any(item), path)
		}
		delete(item, resource.FieldResource)
	}

	item[result.FieldID] = doc.ID
	if doc.Index != "" {
		item[result.FieldIndex] = doc.Index
	}
	if doc.Type != "" && t.variant.ExposeType() {
		item[result.FieldType] = doc.Type
	}
	item.SetVersion(domain.Version{SeqNo: doc.SeqNo, PrimaryTerm: doc.PrimaryTerm, Version: doc.Version})
	return item, nil
}

func decodeInto(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// dateFields lists dotted paths of declared date fields, split into segments.
func dateFields(def resource.Definition) [][]string {
	paths := [][]string{{resource.FieldCreated}, {resource.FieldUpdated}}
	field.Walk(def.Schema(), func(path string, s field.Schema) {
		if s.IsDate() && path != resource.FieldCreated && path != resource.FieldUpdated {
			paths = append(paths, strings.Split(path, "."))
		}
	})
	return paths
}

// parseDates converts the value at path, descending through objects and lists.
// Values that cannot be parsed are left as received.
func parseDates(v any, path []string) {
	switch t := v.(type) {
	case map[string]any:
		child, ok := t[path[0]]
		if !ok {
			return
		}
		if len(path) == 1 {
			t[path[0]] = parseDateValue(child)
			return
		}
		parseDates(child, path[1:])
	case []any:
		for _, el := range t {
			parseDates(el, path)
		}
	}
}

func parseDateValue(v any) any {
	switch t := v.(type) {
	case string:
		if ts, err := dateparse.ParseAny(t); err == nil {
			return ts.UTC()
		}
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = parseDateValue(el)
		}
		return out
	}
	return v
}

// aggregations splits bucket aggregations into facets and keeps the rest raw.
func aggregations(aggs gjson.Result) (map[string][]result.Bucket, map[string]json.RawMessage) {
	if !aggs.IsObject() {
		return nil, nil
	}
	var (
		facets map[string][]result.Bucket
		other  map[string]json.RawMessage
	)
	aggs.ForEach(func(name, agg gjson.Result) bool {
		b := agg.Get("buckets")
		if !b.IsArray() && !b.IsObject() {
			if other == nil {
				other = make(map[string]json.RawMessage)
			}
			other[name.String()] = json.RawMessage(agg.Raw)
			return true
		}
		if facets == nil {
			facets = make(map[string][]result.Bucket)
		}
		buckets := make([]result.Bucket, 0)
		b.ForEach(func(key, bucket gjson.Result) bool {
			k := bucket.Get("key")
			if b.IsObject() {
				// Keyed buckets carry the key as the property name.
				k = key
			}
			buckets = append(buckets, result.Bucket{
				Key:         bucketKey(k),
				KeyAsString: bucket.Get("key_as_string").String(),
				Count:       bucket.Get("doc_count").Int(),
			})
			return true
		})
		facets[name.String()] = buckets
		return true
	})
	return facets, other
}

func bucketKey(k gjson.Result) any {
	switch k.Type {
	case gjson.Number:
		return json.Number(k.Raw)
	case gjson.String:
		return k.String()
	case gjson.True, gjson.False:
		return k.Bool()
	case gjson.JSON:
		var v any
		if err := decodeInto(k.Raw, &v); err == nil {
			return v
		}
	}
	return nil
}

func warnings(doc gjson.Result) []result.Warning {
	var out []result.Warning
	if doc.Get("timed_out").Bool() {
		out = append(out, result.Warning{Kind: result.WarningTimedOut, Message: "engine search timed out; results are partial"})
	}
	if failed := doc.Get("_shards.failed").Int(); failed > 0 {
		msg := fmt.Sprintf("%d of %d shards failed", failed, doc.Get("_shards.total").Int())
		if reason := doc.Get("_shards.failures.0.reason.reason"); reason.Exists() {
			msg += ": " + reason.String()
		}
		out = append(out, result.Warning{Kind: result.WarningShardFailures, Message: msg})
	}
	return out
}

