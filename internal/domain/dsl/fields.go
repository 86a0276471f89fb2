package dsl

import "sort"

// fieldKeyed lists leaf queries whose object keys are field names.
var fieldKeyed = map[string]bool{
	"term": true, "terms": true, "match": true, "match_phrase": true,
	"match_phrase_prefix": true, "prefix": true, "wildcard": true,
	"regexp": true, "fuzzy": true, "range": true, "geo_distance": true,
}

// queryParams are keys inside leaf queries that are options, not fields.
var queryParams = map[string]bool{
	"boost": true, "_name": true, "distance": true, "distance_type": true,
	"validation_method": true,
}

// Fields returns the field names referenced by leaf queries, sorted and unique.
// It is a shallow extraction for validation, not a query parser.
func (d Document) Fields() []string {
	seen := make(map[string]bool)
	collectFields(d.root, seen)
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func collectFields(v any, seen map[string]bool) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			switch {
			case fieldKeyed[k]:
				if m, ok := child.(map[string]any); ok {
					for field := range m {
						if !queryParams[field] {
							seen[field] = true
						}
					}
				}
			case k == "exists":
				if m, ok := child.(map[string]any); ok {
					if f, ok := m["field"].(string); ok {
						seen[f] = true
					}
				}
			case k == "nested":
				if m, ok := child.(map[string]any); ok {
					if p, ok := m["path"].(string); ok {
						seen[p] = true
					}
					collectFields(m["query"], seen)
				}
			default:
				collectFields(child, seen)
			}
		}
	case []any:
		for _, child := range t {
			collectFields(child, seen)
		}
	}
}
