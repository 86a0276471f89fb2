package filter

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// --- Range tests ---

func TestNewRangeFilter_Valid(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte any
	}{
		{"gt only", 1, nil, nil, nil},
		{"gte only", nil, 0.5, nil, nil},
		{"lt only", nil, nil, "2024-01-01", nil},
		{"lte only", nil, nil, nil, 100},
		{"gt+lt", 0, nil, 10, nil},
		{"gte+lte", nil, "now-1d", nil, "now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (r.GT() == nil) != (tt.gt == nil) {
				t.Error("GT() mismatch")
			}
			if (r.GTE() == nil) != (tt.gte == nil) {
				t.Error("GTE() mismatch")
			}
			if (r.LT() == nil) != (tt.lt == nil) {
				t.Error("LT() mismatch")
			}
			if (r.LTE() == nil) != (tt.lte == nil) {
				t.Error("LTE() mismatch")
			}
		})
	}
}

func TestNewRangeFilter_NoBoundary(t *testing.T) {
	_, err := NewRangeFilter(nil, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for no boundary")
	}
	if !strings.Contains(err.Error(), "at least one") {
		t.Errorf("error = %q", err)
	}
}

func TestNewRangeFilter_Exclusive(t *testing.T) {
	if _, err := NewRangeFilter(1, 1, nil, nil); err == nil {
		t.Error("expected error for gt+gte")
	}
	if _, err := NewRangeFilter(nil, nil, 1, 1); err == nil {
		t.Error("expected error for lt+lte")
	}
}

func TestRange_Bounds(t *testing.T) {
	r, _ := NewRangeFilter(nil, 1, 5, nil)
	want := map[string]any{"gte": 1, "lt": 5}
	if got := r.Bounds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}
}

// --- Condition tests ---

func TestTerm(t *testing.T) {
	c, err := Term("status", "open")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Field() != "status" || c.IsList() || c.IsRange() {
		t.Errorf("unexpected condition: %+v", c)
	}
	if _, err := Term("", "x"); err == nil {
		t.Error("expected error for empty field")
	}
	if _, err := Term("status", nil); err == nil {
		t.Error("expected error for nil value")
	}
	if _, err := Term("status", map[string]any{"a": 1}); err == nil {
		t.Error("expected error for object value")
	}
}

func TestTerms_Empty(t *testing.T) {
	c, err := Terms("status", []any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.MatchesNothing() {
		t.Error("empty list must match nothing")
	}
	one, _ := Terms("status", []any{"open"})
	if one.MatchesNothing() {
		t.Error("one-element list must not match nothing")
	}
}

// --- Expression tests ---

func TestFromMap(t *testing.T) {
	e, err := FromMap(map[string]any{
		"urgency": map[string]any{"$gte": 3},
		"status":  []any{"open", "pending"},
		"owner":   "ann",
		"tags":    map[string]any{"$in": []any{"a"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.Fields(); !reflect.DeepEqual(got, []string{"owner", "status", "tags", "urgency"}) {
		t.Errorf("fields = %v", got)
	}
	conds := e.Conditions()
	if conds[0].IsList() || !conds[1].IsList() || !conds[2].IsList() || !conds[3].IsRange() {
		t.Errorf("unexpected condition kinds: %+v", conds)
	}
}

func TestFromMap_Errors(t *testing.T) {
	bad := []map[string]any{
		{"x": map[string]any{"$regex": "a"}},
		{"x": map[string]any{"$in": "a"}},
		{"x": map[string]any{"$in": []any{"a"}, "$gt": 1}},
		{"x": map[string]any{"$gt": []any{1}}},
		{"x": nil},
		{"x": []any{map[string]any{}}},
	}
	for i, m := range bad {
		if _, err := FromMap(m); err == nil {
			t.Errorf("case %d: expected error for %v", i, m)
		}
	}
}

func TestFromMap_TooMany(t *testing.T) {
	m := make(map[string]any)
	for i := 0; i <= MaxConditions; i++ {
		m["f"+strings.Repeat("x", i)] = i
	}
	if _, err := FromMap(m); err == nil {
		t.Fatal("expected error for too many conditions")
	}
}

func TestParseWhere(t *testing.T) {
	e, err := ParseWhere(`{"urgency": 3, "status": ["open"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conds := e.Conditions()
	if len(conds) != 2 {
		t.Fatalf("conditions = %d, want 2", len(conds))
	}
	if v := conds[1].Values()[0]; v != json.Number("3") {
		t.Errorf("urgency value = %#v, want json.Number(3)", v)
	}
	if e, err := ParseWhere(""); err != nil || !e.IsEmpty() {
		t.Errorf("empty where: %v, %v", e, err)
	}
	if _, err := ParseWhere("{bad"); err == nil {
		t.Error("expected parse error")
	}
}

func TestAnd(t *testing.T) {
	a, _ := FromMap(map[string]any{"a": 1})
	b, _ := FromMap(map[string]any{"b": 2})
	both, err := a.And(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(both.Fields(), []string{"a", "b"}) {
		t.Errorf("fields = %v", both.Fields())
	}
}
