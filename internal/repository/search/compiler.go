package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/dialect"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
	"github.com/kailas-cloud/eslayer/internal/domain/search/filter"
	"github.com/kailas-cloud/eslayer/internal/domain/search/order"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
	"github.com/kailas-cloud/eslayer/internal/repository/index"
)

// CompilerConfig holds the global query policy.
type CompilerConfig struct {
	DefaultPageSize  int
	MaxPageSize      int
	AutoAggregations bool
	// EnforceSchema rejects filters on undeclared fields.
	EnforceSchema bool
}

// Compiled is an engine-ready query plus the page size it was compiled with.
type Compiled struct {
	Request *db.SearchRequest
	Size    int
	From    int
}

// Compiler turns query descriptors into engine search bodies. It holds no
// per-call state and is safe for concurrent use.
type Compiler struct {
	variant dialect.Variant
	cfg     CompilerConfig
}

// NewCompiler creates a compiler. Zero page sizes fall back to the request defaults.
func NewCompiler(variant dialect.Variant, cfg CompilerConfig) *Compiler {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = request.DefaultLimit
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = request.MaxLimit
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return &Compiler{variant: variant, cfg: cfg}
}

// Compile builds the search request for def at target t. Unknown facets fail
// before anything is built.
func (c *Compiler) Compile(def resource.Definition, t index.Target, req request.Request) (*Compiled, error) {
	aggs, err := c.facets(def, req)
	if err != nil {
		return nil, err
	}
	query, err := c.query(def, t, req)
	if err != nil {
		return nil, err
	}

	size := c.pageSize(req.Limit())
	body := map[string]any{
		"query":   query,
		"size":    size,
		"from":    req.Offset(),
		"version": true,
	}
	if s := c.sort(def, req); len(s) > 0 {
		body["sort"] = s
	}
	p := req.Projection()
	if p.IsZero() {
		p = def.Projection()
	}
	if !p.IsZero() {
		body["_source"] = p.Source()
	}
	if len(aggs) > 0 {
		body["aggs"] = aggs
	}
	if req.Highlight() && !def.Highlight().IsZero() {
		h := def.Highlight().Map()
		if _, ok := h["require_field_match"]; !ok {
			h["require_field_match"] = false
		}
		body["highlight"] = h
	}
	c.variant.DecorateSearch(body)

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	return &Compiled{
		Request: &db.SearchRequest{Index: []string{t.Index}, Type: t.Type, Body: raw},
		Size:    size,
		From:    req.Offset(),
	}, nil
}

// CompileCount builds a query-only body for counting.
func (c *Compiler) CompileCount(def resource.Definition, t index.Target, req request.Request) (*db.SearchRequest, error) {
	query, err := c.query(def, t, req)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	return &db.SearchRequest{Index: []string{t.Index}, Type: t.Type, Body: raw}, nil
}

// ScopeQuery returns the query clause selecting every document of a resource,
// honoring the shared-index discriminator and the resource filter.
func (c *Compiler) ScopeQuery(def resource.Definition, t index.Target) ([]byte, error) {
	req, _ := request.New()
	query, err := c.query(def, t, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(query)
}

func (c *Compiler) pageSize(limit int) int {
	switch {
	case limit <= 0:
		return c.cfg.DefaultPageSize
	case limit > c.cfg.MaxPageSize:
		return c.cfg.MaxPageSize
	default:
		return limit
	}
}

// query ANDs every clause: full text under must, everything else under filter.
func (c *Compiler) query(def resource.Definition, t index.Target, req request.Request) (map[string]any, error) {
	var must, filters []any

	if req.HasQuery() {
		must = append(must, c.fullText(def, req))
	}

	where, err := req.Where().And(req.Lookup())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}
	if c.cfg.EnforceSchema {
		if err := checkFields(def, where.Fields()); err != nil {
			return nil, err
		}
	}
	for _, cond := range where.Conditions() {
		filters = append(filters, compileCondition(cond))
	}

	if d := t.Discriminator(); d != "" {
		filters = append(filters, map[string]any{"term": map[string]any{resource.FieldResource: d}})
	}
	if f := def.Filter(); !f.IsZero() {
		filters = append(filters, f.Map())
	}
	if f := req.Filter(); !f.IsZero() {
		if c.cfg.EnforceSchema {
			if err := checkFields(def, f.Fields()); err != nil {
				return nil, err
			}
		}
		filters = append(filters, f.Map())
	}

	if len(must) == 0 && len(filters) == 0 {
		return map[string]any{"match_all": map[string]any{}}, nil
	}
	b := make(map[string]any, 2)
	if len(must) > 0 {
		b["must"] = must
	}
	if len(filters) > 0 {
		b["filter"] = filters
	}
	return map[string]any{"bool": b}, nil
}

func (c *Compiler) fullText(def resource.Definition, req request.Request) map[string]any {
	df := req.DefaultField()
	if df == "" {
		df = def.DefaultField()
	}
	if df == "" {
		df = c.variant.CatchAllField()
	}

	q := req.Query()
	if phrase, ok := quotedPhrase(q); ok {
		return map[string]any{"match_phrase": map[string]any{df: phrase}}
	}
	return map[string]any{"query_string": map[string]any{
		"query":            q,
		"default_field":    df,
		"default_operator": string(req.Operator()),
	}}
}

// quotedPhrase reports whether q is a single double-quoted phrase.
func quotedPhrase(q string) (string, bool) {
	if len(q) < 2 || q[0] != '"' || q[len(q)-1] != '"' {
		return "", false
	}
	inner := q[1 : len(q)-1]
	if strings.Contains(inner, `"`) || strings.TrimSpace(inner) == "" {
		return "", false
	}
	return inner, true
}

func compileCondition(cond filter.Condition) map[string]any {
	switch {
	case cond.IsRange():
		return map[string]any{"range": map[string]any{cond.Field(): cond.Range().Bounds()}}
	case cond.MatchesNothing():
		return map[string]any{"bool": map[string]any{
			"must_not": []any{map[string]any{"match_all": map[string]any{}}},
		}}
	}
	values := cond.Values()
	if len(values) == 1 {
		return map[string]any{"term": map[string]any{cond.Field(): values[0]}}
	}
	return map[string]any{"terms": map[string]any{cond.Field(): values}}
}

func (c *Compiler) sort(def resource.Definition, req request.Request) []any {
	fields := req.Sort()
	if len(fields) == 0 {
		if req.HasQuery() {
			return nil
		}
		fields = def.DefaultSort()
	}
	return compileSort(fields)
}

func compileSort(fields []order.Field) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]any{f.Name: map[string]any{
			"order":         string(f.Direction),
			"unmapped_type": "long",
		}})
	}
	return out
}

// facets returns the aggregations to attach, validating requested names.
func (c *Compiler) facets(def resource.Definition, req request.Request) (map[string]any, error) {
	names := req.Facets()
	var unknown []string
	for _, n := range names {
		if _, ok := def.Facet(n); !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &domain.UnknownFacetError{Resource: def.Name(), Facets: unknown}
	}

	if req.Aggregations() || (c.cfg.AutoAggregations && len(names) == 0) {
		names = def.FacetNames()
	}
	if len(names) == 0 {
		return nil, nil
	}
	aggs := make(map[string]any, len(names))
	for _, n := range names {
		f, _ := def.Facet(n)
		aggs[n] = f.Map()
	}
	return aggs, nil
}

var metaFields = map[string]bool{
	"_id": true, "_index": true, "_score": true,
	resource.FieldCreated: true, resource.FieldUpdated: true, resource.FieldResource: true,
}

// checkFields rejects field names the schema does not declare. Sub-fields of
// raw mappings are accepted since their shape is opaque.
func checkFields(def resource.Definition, names []string) error {
	var unknown []string
	for _, n := range names {
		if metaFields[n] {
			continue
		}
		if _, ok := def.Field(n); ok {
			continue
		}
		if i := strings.LastIndexByte(n, '.'); i > 0 {
			if parent, ok := def.Field(n[:i]); ok && parent.Kind() == field.Mapped {
				continue
			}
		}
		unknown = append(unknown, n)
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: undeclared fields %s on resource %s", domain.ErrInvalidQuery, strings.Join(unknown, ", "), def.Name())
	}
	return nil
}
