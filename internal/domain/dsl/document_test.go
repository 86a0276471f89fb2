package dsl

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParse_Object(t *testing.T) {
	d, err := Parse([]byte(`{"term":{"status":"open"},"boost":1.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.IsZero() {
		t.Fatal("expected non-empty document")
	}
	if got := d.Keys(); !reflect.DeepEqual(got, []string{"boost", "term"}) {
		t.Errorf("keys = %v", got)
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"boost":1.5,"term":{"status":"open"}}` {
		t.Errorf("json = %s", b)
	}
}

func TestParse_Rejects(t *testing.T) {
	bad := []string{`[1,2]`, `"x"`, `{"a":1} {"b":2}`, `{broken`}
	for _, in := range bad {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%s) expected error", in)
		}
	}
}

func TestFromMap_Unsupported(t *testing.T) {
	_, err := FromMap(map[string]any{"term": map[string]any{"ch": make(chan int)}})
	if err == nil {
		t.Fatal("expected error for channel value")
	}
	if !strings.Contains(err.Error(), "term.ch") {
		t.Errorf("error should name the path, got %v", err)
	}
}

func TestFromMap_TooDeep(t *testing.T) {
	m := map[string]any{}
	cur := m
	for i := 0; i < MaxDepth+2; i++ {
		next := map[string]any{}
		cur["a"] = next
		cur = next
	}
	if _, err := FromMap(m); err == nil {
		t.Fatal("expected depth error")
	}
}

func TestFromMap_CopiesInput(t *testing.T) {
	src := map[string]any{"terms": map[string]any{"tags": []string{"a", "b"}}}
	d := MustFromMap(src)
	src["terms"] = "changed"

	got := d.Map()
	terms, ok := got["terms"].(map[string]any)
	if !ok {
		t.Fatalf("document changed with its source: %v", got)
	}
	terms["tags"] = nil
	again := d.Map()["terms"].(map[string]any)
	if again["tags"] == nil {
		t.Error("Map must return a copy")
	}
}

func TestUnmarshalYAML(t *testing.T) {
	var holder struct {
		Facet Document `yaml:"facet"`
	}
	src := "facet:\n  terms:\n    field: urgency\n    size: 10\n"
	if err := yaml.Unmarshal([]byte(src), &holder); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	b, _ := json.Marshal(holder.Facet)
	if string(b) != `{"terms":{"field":"urgency","size":10}}` {
		t.Errorf("json = %s", b)
	}
}

func TestZeroDocument(t *testing.T) {
	var d Document
	if !d.IsZero() {
		t.Error("zero document should be empty")
	}
	if d.Map() != nil {
		t.Error("zero document map should be nil")
	}
	b, _ := d.MarshalJSON()
	if string(b) != "{}" {
		t.Errorf("json = %s", b)
	}
}

// --- Fields ---

func TestFields(t *testing.T) {
	d, err := Parse([]byte(`{
		"bool": {
			"must": [
				{"term": {"status": {"value": "open", "boost": 2}}},
				{"range": {"created": {"gte": "now-1d"}}},
				{"exists": {"field": "owner"}}
			],
			"should": {"nested": {"path": "comments", "query": {"match": {"comments.body": "hi"}}}}
		}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"comments", "comments.body", "created", "owner", "status"}
	if got := d.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
}

func TestFields_Empty(t *testing.T) {
	if got := (Document{}).Fields(); len(got) != 0 {
		t.Errorf("Fields() = %v, want empty", got)
	}
}
