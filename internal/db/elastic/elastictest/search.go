package elastictest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type searchBody struct {
	Query          map[string]any            `json:"query"`
	Size           *int                      `json:"size"`
	From           int                       `json:"from"`
	Sort           []any                     `json:"sort"`
	Source         any                       `json:"_source"`
	Aggs           map[string]map[string]any `json:"aggs"`
	TrackTotalHits any                       `json:"track_total_hits"`
}

type match struct {
	idx *index
	doc *storedDoc
}

func (e *Engine) collect(names []string, query map[string]any) ([]match, string, bool) {
	var out []match
	for _, name := range names {
		idx := e.lookup(name)
		if idx == nil {
			return nil, name, false
		}
		for _, id := range idx.order {
			d := idx.docs[id]
			if matches(query, d.source) {
				out = append(out, match{idx: idx, doc: d})
			}
		}
	}
	return out, "", true
}

func (e *Engine) search(names []string, body []byte) (int, any) {
	var req searchBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return engineError(http.StatusBadRequest, "parsing_exception", err.Error())
		}
	}
	hits, missing, ok := e.collect(names, req.Query)
	if !ok {
		return indexNotFound(missing)
	}
	sortMatches(hits, req.Sort)

	size := 10
	if req.Size != nil {
		size = *req.Size
	}
	page := []any{}
	for i := req.From; i < len(hits) && i < req.From+size; i++ {
		h := hits[i].idx.hit(hits[i].doc)
		delete(h, "found")
		h["_score"] = 1.0
		h["_source"] = project(hits[i].doc.source, req.Source)
		page = append(page, h)
	}

	var total any = len(hits)
	if req.TrackTotalHits != nil {
		total = map[string]any{"value": len(hits), "relation": "eq"}
	}
	resp := map[string]any{
		"took":      1,
		"timed_out": false,
		"_shards":   map[string]any{"total": 1, "successful": 1, "skipped": 0, "failed": 0},
		"hits":      map[string]any{"total": total, "max_score": 1.0, "hits": page},
	}
	if len(req.Aggs) > 0 {
		resp["aggregations"] = aggregate(hits, req.Aggs)
	}
	return http.StatusOK, resp
}

func (e *Engine) count(names []string, body []byte) (int, any) {
	var req searchBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return engineError(http.StatusBadRequest, "parsing_exception", err.Error())
		}
	}
	hits, missing, ok := e.collect(names, req.Query)
	if !ok {
		return indexNotFound(missing)
	}
	return http.StatusOK, map[string]any{"count": len(hits)}
}

// --- Query evaluation ---

// matches evaluates the supported query clauses: match_all, bool, term,
// terms, range, exists, query_string, match and match_phrase.
// Unknown clauses match nothing.
func matches(query map[string]any, src map[string]any) bool {
	if len(query) == 0 {
		return true
	}
	for kind, raw := range query {
		clause, _ := raw.(map[string]any)
		switch kind {
		case "match_all":
		case "bool":
			if !matchBool(clause, src) {
				return false
			}
		case "term":
			for f, v := range clause {
				if m, ok := v.(map[string]any); ok {
					v = m["value"]
				}
				if !anyValue(values(src, f), func(x any) bool { return equal(x, v) }) {
					return false
				}
			}
		case "terms":
			for f, v := range clause {
				want, _ := v.([]any)
				if !anyValue(values(src, f), func(x any) bool {
					for _, w := range want {
						if equal(x, w) {
							return true
						}
					}
					return false
				}) {
					return false
				}
			}
		case "range":
			for f, v := range clause {
				bounds, _ := v.(map[string]any)
				if !anyValue(values(src, f), func(x any) bool { return inRange(x, bounds) }) {
					return false
				}
			}
		case "exists":
			f, _ := clause["field"].(string)
			if len(values(src, f)) == 0 {
				return false
			}
		case "query_string":
			text, _ := clause["query"].(string)
			field, _ := clause["default_field"].(string)
			op, _ := clause["default_operator"].(string)
			if !matchText(src, field, text, strings.EqualFold(op, "and")) {
				return false
			}
		case "match", "match_phrase":
			for f, v := range clause {
				if m, ok := v.(map[string]any); ok {
					v = m["query"]
				}
				text := fmt.Sprint(v)
				if !matchText(src, f, text, true) {
					return false
				}
			}
		default:
			return false
		}
	}
	return true
}

func matchBool(clause map[string]any, src map[string]any) bool {
	for _, key := range []string{"must", "filter"} {
		for _, q := range clauses(clause[key]) {
			if !matches(q, src) {
				return false
			}
		}
	}
	for _, q := range clauses(clause["must_not"]) {
		if matches(q, src) {
			return false
		}
	}
	if should := clauses(clause["should"]); len(should) > 0 {
		for _, q := range should {
			if matches(q, src) {
				return true
			}
		}
		return false
	}
	return true
}

func clauses(v any) []map[string]any {
	switch c := v.(type) {
	case map[string]any:
		return []map[string]any{c}
	case []any:
		out := make([]map[string]any, 0, len(c))
		for _, x := range c {
			if m, ok := x.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// matchText does case-insensitive substring matching of whitespace separated
// terms. "field:term" terms address a single field; catch-all fields search
// every string value.
func matchText(src map[string]any, field, text string, all bool) bool {
	terms := strings.Fields(strings.ToLower(strings.ReplaceAll(text, `"`, "")))
	matched := 0
	for _, t := range terms {
		if t == "and" || t == "or" {
			continue
		}
		f := field
		if name, term, ok := strings.Cut(t, ":"); ok {
			f, t = name, term
		}
		t = strings.Trim(t, "*")
		hit := false
		for _, s := range textValues(src, f) {
			if strings.Contains(strings.ToLower(s), t) {
				hit = true
				break
			}
		}
		if hit {
			matched++
		} else if all {
			return false
		}
	}
	return all || matched > 0
}

func textValues(src map[string]any, field string) []string {
	var out []string
	if field == "" || field == "all" || field == "_all" || field == "*" {
		walkStrings(src, &out)
		return out
	}
	for _, v := range values(src, field) {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func walkStrings(v any, out *[]string) {
	switch x := v.(type) {
	case string:
		*out = append(*out, x)
	case map[string]any:
		for k, c := range x {
			if strings.HasPrefix(k, "_") {
				continue
			}
			walkStrings(c, out)
		}
	case []any:
		for _, c := range x {
			walkStrings(c, out)
		}
	}
}

// values resolves a dotted path, flattening arrays along the way.
func values(src map[string]any, path string) []any {
	if v, ok := src[path]; ok {
		return flatten(v)
	}
	head, tail, ok := strings.Cut(path, ".")
	if !ok {
		return nil
	}
	var out []any
	for _, v := range flatten(src[head]) {
		switch m := v.(type) {
		case map[string]any:
			out = append(out, values(m, tail)...)
		default:
			// Multi-fields such as name.keyword index the parent value.
			if tail == "keyword" || tail == "raw" {
				out = append(out, m)
			}
		}
	}
	return out
}

func flatten(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		var out []any
		for _, c := range x {
			out = append(out, flatten(c)...)
		}
		return out
	default:
		return []any{x}
	}
}

func anyValue(vs []any, fn func(any) bool) bool {
	for _, v := range vs {
		if fn(v) {
			return true
		}
	}
	return false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// compare orders numbers numerically and everything else as strings.
func compare(a, b any) int {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func inRange(v any, bounds map[string]any) bool {
	for op, b := range bounds {
		c := compare(v, b)
		switch op {
		case "gt":
			if c <= 0 {
				return false
			}
		case "gte":
			if c < 0 {
				return false
			}
		case "lt":
			if c >= 0 {
				return false
			}
		case "lte":
			if c > 0 {
				return false
			}
		}
	}
	return true
}

// --- Sorting, projection, aggregations ---

type sortKey struct {
	field string
	desc  bool
}

func sortKeys(spec []any) []sortKey {
	var keys []sortKey
	for _, s := range spec {
		switch x := s.(type) {
		case string:
			keys = append(keys, sortKey{field: x})
		case map[string]any:
			for f, o := range x {
				desc := false
				switch ov := o.(type) {
				case string:
					desc = ov == "desc"
				case map[string]any:
					desc = ov["order"] == "desc"
				}
				keys = append(keys, sortKey{field: f, desc: desc})
			}
		}
	}
	return keys
}

func sortMatches(hits []match, spec []any) {
	keys := sortKeys(spec)
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, k := range keys {
			if k.field == "_score" {
				continue
			}
			a, b := first(hits[i].doc.source, k.field), first(hits[j].doc.source, k.field)
			switch {
			case a == nil && b == nil:
				continue
			case a == nil:
				return false
			case b == nil:
				return true
			}
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func first(src map[string]any, field string) any {
	if k := strings.TrimSuffix(field, ".keyword"); k != field {
		field = k
	}
	if vs := values(src, field); len(vs) > 0 {
		return vs[0]
	}
	return nil
}

// project applies a _source filter: false, a field list or {includes, excludes}.
func project(src map[string]any, filter any) any {
	var includes, excludes []string
	switch f := filter.(type) {
	case nil:
		return src
	case bool:
		if !f {
			return nil
		}
		return src
	case string:
		includes = []string{f}
	case []any:
		includes = strs(f)
	case map[string]any:
		inc, _ := f["includes"].([]any)
		exc, _ := f["excludes"].([]any)
		includes, excludes = strs(inc), strs(exc)
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		if len(includes) > 0 && !covered(k, includes) {
			continue
		}
		if covered(k, excludes) {
			continue
		}
		out[k] = v
	}
	return out
}

func covered(key string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(p, ".*")
		if p == key || strings.HasPrefix(p, key+".") || strings.HasPrefix(key, p+".") {
			return true
		}
	}
	return false
}

func strs(vs []any) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// aggregate evaluates terms aggregations; other kinds return no buckets.
func aggregate(hits []match, aggs map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(aggs))
	for name, agg := range aggs {
		terms, ok := agg["terms"].(map[string]any)
		if !ok {
			out[name] = map[string]any{"buckets": []any{}}
			continue
		}
		field, _ := terms["field"].(string)
		field = strings.TrimSuffix(field, ".keyword")
		size := 10
		if s, ok := number(terms["size"]); ok {
			size = int(s)
		}

		counts := map[string]int{}
		keys := map[string]any{}
		for _, h := range hits {
			seen := map[string]bool{}
			for _, v := range values(h.doc.source, field) {
				k := fmt.Sprint(v)
				if seen[k] {
					continue
				}
				seen[k] = true
				counts[k]++
				keys[k] = v
			}
		}
		names := make([]string, 0, len(counts))
		for k := range counts {
			names = append(names, k)
		}
		sort.Slice(names, func(i, j int) bool {
			if counts[names[i]] != counts[names[j]] {
				return counts[names[i]] > counts[names[j]]
			}
			return names[i] < names[j]
		})
		buckets := make([]any, 0, len(names))
		for i, k := range names {
			if i >= size {
				break
			}
			buckets = append(buckets, map[string]any{"key": keys[k], "doc_count": counts[k]})
		}
		out[name] = map[string]any{
			"doc_count_error_upper_bound": 0,
			"sum_other_doc_count":         0,
			"buckets":                     buckets,
		}
	}
	return out
}
