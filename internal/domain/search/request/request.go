package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/eslayer/internal/domain/dsl"
	"github.com/kailas-cloud/eslayer/internal/domain/search/filter"
	"github.com/kailas-cloud/eslayer/internal/domain/search/order"
	"github.com/kailas-cloud/eslayer/internal/domain/search/projection"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed full-text query length.
	MaxQueryLength = 4096
	DefaultLimit   = 25
	MaxLimit       = 100
	MaxFacets      = 32
)

// Operator is the default boolean operator of a full-text query.
type Operator string

// Full-text operators.
const (
	OperatorOr  Operator = "OR"
	OperatorAnd Operator = "AND"
)

// Request is a validated, per-call query descriptor.
type Request struct {
	where        filter.Expression
	lookup       filter.Expression
	query        string
	defaultField string
	operator     Operator
	filter       dsl.Document
	sort         []order.Field
	offset       int
	limit        int
	projection   projection.Projection
	facets       []string
	aggregations bool
	highlight    bool
}

// Option sets one descriptor parameter.
type Option func(*Request)

// WithWhere sets the term filters.
func WithWhere(e filter.Expression) Option { return func(r *Request) { r.where = e } }

// WithLookup sets sub-resource lookup terms, ANDed with where.
func WithLookup(e filter.Expression) Option { return func(r *Request) { r.lookup = e } }

// WithQuery sets the full-text query string.
func WithQuery(q string) Option { return func(r *Request) { r.query = q } }

// WithDefaultField sets the full-text default field.
func WithDefaultField(df string) Option { return func(r *Request) { r.defaultField = df } }

// WithOperator sets the full-text default operator.
func WithOperator(op Operator) Option { return func(r *Request) { r.operator = op } }

// WithFilter sets the passthrough filter document.
func WithFilter(d dsl.Document) Option { return func(r *Request) { r.filter = d } }

// WithSort sets the sort pairs.
func WithSort(fields ...order.Field) Option {
	return func(r *Request) { r.sort = append([]order.Field(nil), fields...) }
}

// WithOffset sets the number of hits to skip.
func WithOffset(n int) Option { return func(r *Request) { r.offset = n } }

// WithLimit sets the page size. Zero means the configured default.
func WithLimit(n int) Option { return func(r *Request) { r.limit = n } }

// WithPage sets 1-based page addressing; it overrides offset.
func WithPage(page, maxResults int) Option {
	return func(r *Request) {
		r.limit = maxResults
		if page < 1 {
			page = 1
		}
		if maxResults > 0 {
			r.offset = (page - 1) * maxResults
		}
	}
}

// WithProjection sets the source filter.
func WithProjection(p projection.Projection) Option { return func(r *Request) { r.projection = p } }

// WithFacets requests declared facets by name.
func WithFacets(names ...string) Option {
	return func(r *Request) { r.facets = append(r.facets, names...) }
}

// WithAggregations asks for every declared facet.
func WithAggregations() Option { return func(r *Request) { r.aggregations = true } }

// WithHighlight asks for highlighted fragments.
func WithHighlight() Option { return func(r *Request) { r.highlight = true } }

// New validates and normalizes a descriptor.
func New(opts ...Option) (Request, error) {
	var r Request
	for _, o := range opts {
		o(&r)
	}
	if len(r.query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	r.query = strings.TrimSpace(r.query)
	switch Operator(strings.ToUpper(string(r.operator))) {
	case "", OperatorOr:
		r.operator = OperatorOr
	case OperatorAnd:
		r.operator = OperatorAnd
	default:
		return Request{}, fmt.Errorf("invalid default operator %q", r.operator)
	}
	if r.offset < 0 {
		return Request{}, fmt.Errorf("offset must not be negative")
	}
	if r.limit < 0 {
		return Request{}, fmt.Errorf("limit must not be negative")
	}
	if len(r.facets) > MaxFacets {
		return Request{}, fmt.Errorf("too many facets (max %d)", MaxFacets)
	}
	r.facets = uniq(r.facets)
	return r, nil
}

func uniq(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Where returns the term filters.
func (r *Request) Where() filter.Expression { return r.where }

// Lookup returns the sub-resource lookup terms.
func (r *Request) Lookup() filter.Expression { return r.lookup }

// Query returns the full-text query; empty means match-all.
func (r *Request) Query() string { return r.query }

// HasQuery reports whether a real full-text query was given. "*" is match-all.
func (r *Request) HasQuery() bool { return r.query != "" && r.query != "*" }

// DefaultField returns the requested full-text field.
func (r *Request) DefaultField() string { return r.defaultField }

// Operator returns the full-text default operator.
func (r *Request) Operator() Operator { return r.operator }

// Filter returns the passthrough filter.
func (r *Request) Filter() dsl.Document { return r.filter }

// Sort returns the sort pairs.
func (r *Request) Sort() []order.Field { return append([]order.Field(nil), r.sort...) }

// Offset returns the number of hits to skip.
func (r *Request) Offset() int { return r.offset }

// Limit returns the requested page size; zero means unset.
func (r *Request) Limit() int { return r.limit }

// Projection returns the source filter.
func (r *Request) Projection() projection.Projection { return r.projection }

// Facets returns the requested facet names in request order.
func (r *Request) Facets() []string { return append([]string(nil), r.facets...) }

// Aggregations reports whether every declared facet was requested.
func (r *Request) Aggregations() bool { return r.aggregations }

// Highlight reports whether highlights were requested.
func (r *Request) Highlight() bool { return r.highlight }
