package eslayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/eslayer/internal/domain/dsl"
	"github.com/kailas-cloud/eslayer/internal/domain/search/filter"
	"github.com/kailas-cloud/eslayer/internal/domain/search/order"
	"github.com/kailas-cloud/eslayer/internal/domain/search/projection"
	"github.com/kailas-cloud/eslayer/internal/domain/search/request"
)

// Query is a fluent find descriptor. The zero value matches everything.
// Builder errors are reported by Do, Count or SearchService.Find.
type Query struct {
	svc *SearchService

	where   Fields
	ranges  []filter.Condition
	text    string
	field   string
	and     bool
	filter  map[string]any
	sort    string
	offset  int
	limit   int
	include []string
	exclude []string
	facets  []string
	allAggs bool
	hl      bool

	errs []error
}

// Where adds an equality condition. A slice value matches any element.
func (q *Query) Where(field string, value any) *Query {
	if q.where == nil {
		q.where = Fields{}
	}
	q.where[field] = value
	return q
}

// Range adds a range condition; nil bounds are open.
func (q *Query) Range(field string, gt, gte, lt, lte any) *Query {
	r, err := filter.NewRangeFilter(gt, gte, lt, lte)
	if err != nil {
		q.errs = append(q.errs, err)
		return q
	}
	c, err := filter.NewRange(field, r)
	if err != nil {
		q.errs = append(q.errs, err)
		return q
	}
	q.ranges = append(q.ranges, c)
	return q
}

// Text sets the full-text query string.
func (q *Query) Text(s string) *Query {
	q.text = s
	return q
}

// DefaultField sets the field searched by Text. Defaults to every field.
func (q *Query) DefaultField(f string) *Query {
	q.field = f
	return q
}

// MatchAll makes every Text term required.
func (q *Query) MatchAll() *Query {
	q.and = true
	return q
}

// Filter sets a raw engine filter clause, ANDed with the other conditions.
func (q *Query) Filter(clause map[string]any) *Query {
	q.filter = clause
	return q
}

// Sort sets the sort order as "name,-created"; '-' means descending.
func (q *Query) Sort(spec string) *Query {
	q.sort = spec
	return q
}

// Offset skips the first n hits.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Limit sets the page size. Zero means the configured default.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Page selects a 1-based page of size hits.
func (q *Query) Page(page, size int) *Query {
	if page < 1 {
		page = 1
	}
	q.limit = size
	q.offset = (page - 1) * size
	return q
}

// Include restricts returned fields.
func (q *Query) Include(fields ...string) *Query {
	q.include = append(q.include, fields...)
	return q
}

// Exclude drops fields from returned documents.
func (q *Query) Exclude(fields ...string) *Query {
	q.exclude = append(q.exclude, fields...)
	return q
}

// Facets requests declared facets by name.
func (q *Query) Facets(names ...string) *Query {
	q.facets = append(q.facets, names...)
	return q
}

// AllFacets requests every declared facet.
func (q *Query) AllFacets() *Query {
	q.allAggs = true
	return q
}

// Highlight asks for highlighted fragments of Text matches.
func (q *Query) Highlight() *Query {
	q.hl = true
	return q
}

// Do runs the query as a find.
func (q *Query) Do(ctx context.Context) (Page, error) {
	if q.svc == nil {
		return Page{}, errors.New("eslayer: query is not bound to a resource")
	}
	return q.svc.Find(ctx, q)
}

// Count runs the query as a count.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.svc == nil {
		return 0, errors.New("eslayer: query is not bound to a resource")
	}
	return q.svc.Count(ctx, q)
}

func (q *Query) build() (request.Request, error) {
	if q == nil {
		return request.New()
	}
	if len(q.errs) > 0 {
		return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, errors.Join(q.errs...))
	}

	where, err := filter.FromMap(q.where)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if len(q.ranges) > 0 {
		ranges, err := filter.NewExpression(q.ranges...)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		if where, err = where.And(ranges); err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	}

	opts := []request.Option{
		request.WithWhere(where),
		request.WithQuery(q.text),
		request.WithDefaultField(q.field),
		request.WithOffset(q.offset),
		request.WithLimit(q.limit),
		request.WithFacets(q.facets...),
	}
	if q.and {
		opts = append(opts, request.WithOperator(request.OperatorAnd))
	}
	if q.filter != nil {
		d, err := dsl.FromMap(q.filter)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		opts = append(opts, request.WithFilter(d))
	}
	if q.sort != "" {
		fields, err := order.Parse(q.sort)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		opts = append(opts, request.WithSort(fields...))
	}
	if len(q.include) > 0 || len(q.exclude) > 0 {
		opts = append(opts, request.WithProjection(projection.New(q.include, q.exclude)))
	}
	if q.allAggs {
		opts = append(opts, request.WithAggregations())
	}
	if q.hl {
		opts = append(opts, request.WithHighlight())
	}

	req, err := request.New(opts...)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return req, nil
}
