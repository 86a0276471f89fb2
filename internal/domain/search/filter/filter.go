package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 64

// Expression is an AND of field conditions.
type Expression struct {
	conds []Condition
}

// NewExpression validates and creates an Expression.
func NewExpression(conds ...Condition) (Expression, error) {
	if len(conds) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Expression{conds: append([]Condition(nil), conds...)}, nil
}

// FromMap reads a framework where-map. Scalars become exact matches, slices and
// {"$in": [...]} become OR-of-terms, {"$gt"|"$gte"|"$lt"|"$lte": v} become ranges.
// Conditions are ordered by field name.
func FromMap(where map[string]any) (Expression, error) {
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]Condition, 0, len(keys))
	for _, k := range keys {
		c, err := conditionFromValue(k, where[k])
		if err != nil {
			return Expression{}, err
		}
		conds = append(conds, c)
	}
	return NewExpression(conds...)
}

// ParseWhere decodes a JSON where-map as sent in a query string.
func ParseWhere(s string) (Expression, error) {
	if s == "" {
		return Expression{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return Expression{}, fmt.Errorf("parse where: %w", err)
	}
	return FromMap(m)
}

func conditionFromValue(key string, v any) (Condition, error) {
	switch t := v.(type) {
	case []any:
		return Terms(key, t)
	case []string:
		vals := make([]any, len(t))
		for i, s := range t {
			vals[i] = s
		}
		return Terms(key, vals)
	case map[string]any:
		if in, ok := t["$in"]; ok {
			if len(t) != 1 {
				return Condition{}, fmt.Errorf("where %q: $in cannot be combined with other operators", key)
			}
			list, ok := in.([]any)
			if !ok {
				return Condition{}, fmt.Errorf("where %q: $in expects a list", key)
			}
			return Terms(key, list)
		}
		var r Range
		for op, bound := range t {
			if !isScalar(bound) {
				return Condition{}, fmt.Errorf("where %q: %s expects a scalar", key, op)
			}
			switch op {
			case "$gt":
				r.gt = bound
			case "$gte":
				r.gte = bound
			case "$lt":
				r.lt = bound
			case "$lte":
				r.lte = bound
			default:
				return Condition{}, fmt.Errorf("where %q: unsupported operator %q", key, op)
			}
		}
		rng, err := NewRangeFilter(r.gt, r.gte, r.lt, r.lte)
		if err != nil {
			return Condition{}, fmt.Errorf("where %q: %w", key, err)
		}
		return NewRange(key, rng)
	default:
		return Term(key, v)
	}
}

// Conditions returns the conditions in order.
func (e Expression) Conditions() []Condition { return append([]Condition(nil), e.conds...) }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conds) == 0 }

// Fields returns the constrained field names in order.
func (e Expression) Fields() []string {
	out := make([]string, len(e.conds))
	for i, c := range e.conds {
		out[i] = c.field
	}
	return out
}

// And returns an expression holding the conditions of both.
func (e Expression) And(other Expression) (Expression, error) {
	return NewExpression(append(e.Conditions(), other.conds...)...)
}

// Condition is an exact match, an OR-of-terms list, or a range on one field.
type Condition struct {
	field  string
	values []any
	list   bool
	rng    *Range
}

// Term creates an exact-match condition.
func Term(field string, value any) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	if value == nil {
		return Condition{}, fmt.Errorf("value is required for field %q", field)
	}
	if !isScalar(value) {
		return Condition{}, fmt.Errorf("unsupported value %T for field %q", value, field)
	}
	return Condition{field: field, values: []any{value}}, nil
}

// Terms creates an OR-of-terms condition. An empty list matches nothing.
func Terms(field string, values []any) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	for _, v := range values {
		if v == nil || !isScalar(v) {
			return Condition{}, fmt.Errorf("unsupported list value %T for field %q", v, field)
		}
	}
	return Condition{field: field, values: append([]any{}, values...), list: true}, nil
}

// NewRange creates a range condition.
func NewRange(field string, r Range) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required")
	}
	return Condition{field: field, rng: &r}, nil
}

// Field returns the field name.
func (c Condition) Field() string { return c.field }

// Values returns the accepted values.
func (c Condition) Values() []any { return append([]any(nil), c.values...) }

// IsList reports whether the condition was given as a list.
func (c Condition) IsList() bool { return c.list }

// MatchesNothing reports whether the condition is an empty list.
func (c Condition) MatchesNothing() bool { return c.list && len(c.values) == 0 }

// Range returns the range expression.
func (c Condition) Range() *Range { return c.rng }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rng != nil }

// Range has gt/gte/lt/lte boundaries of any scalar type (numbers, dates).
type Range struct {
	gt  any
	gte any
	lt  any
	lte any
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte any) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() any { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() any { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() any { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() any { return r.lte }

// Bounds renders the non-nil boundaries with engine keys.
func (r Range) Bounds() map[string]any {
	out := make(map[string]any, 2)
	for k, v := range map[string]any{"gt": r.gt, "gte": r.gte, "lt": r.lt, "lte": r.lte} {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, json.Number, float64, float32,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, time.Time:
		return true
	}
	return false
}
