package resource

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/dsl"
	"github.com/kailas-cloud/eslayer/internal/domain/resource/field"
	"github.com/kailas-cloud/eslayer/internal/domain/search/order"
)

var urgencyFacet = dsl.MustFromMap(map[string]any{"terms": map[string]any{"field": "urgency"}})

func TestNew_Valid(t *testing.T) {
	d, err := New("contacts",
		WithField("name", field.Scalar(field.String)),
		WithField("urgency", field.Scalar(field.Integer)),
		WithFacet("urgency", urgencyFacet),
		WithDefaultSort(order.Field{Name: "name", Direction: order.Asc}),
		WithForceRefresh(false),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name() != "contacts" || d.Source() != "contacts" {
		t.Errorf("name/source = %q/%q", d.Name(), d.Source())
	}
	if !d.HasFacets() || !reflect.DeepEqual(d.FacetNames(), []string{"urgency"}) {
		t.Errorf("facets = %v", d.FacetNames())
	}
	if v, ok := d.ForceRefresh(); !ok || v {
		t.Errorf("force refresh = %v, %v; want false, true", v, ok)
	}
	if len(d.DefaultSort()) != 1 {
		t.Errorf("default sort = %v", d.DefaultSort())
	}
}

func TestNew_Invalid(t *testing.T) {
	neg := -1
	tests := []struct {
		name string
		res  string
		opts []Option
	}{
		{"empty name", "", nil},
		{"bad chars", "con tacts", nil},
		{"bad source", "contacts", []Option{WithSource("a/b")}},
		{"dotted field", "contacts", []Option{WithField("a.b", field.Scalar(field.String))}},
		{"empty facet", "contacts", []Option{WithFacet("urgency", dsl.Document{})}},
		{"negative shards", "contacts", []Option{WithSettings(Settings{Shards: -1})}},
		{"negative replicas", "contacts", []Option{WithSettings(Settings{Replicas: &neg})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.res, tt.opts...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSource_Override(t *testing.T) {
	d, err := New("archived_contacts", WithSource("contacts"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Source() != "contacts" {
		t.Errorf("source = %q, want contacts", d.Source())
	}
}

func TestField_Paths(t *testing.T) {
	d, err := New("contacts",
		WithField("address", field.Nested(map[string]field.Schema{"city": field.Scalar(field.String)})),
		WithField("events", field.ListOf(field.Nested(map[string]field.Schema{"at": field.Scalar(field.Date)}))),
		WithField("tags", field.ListOf(field.Scalar(field.Keyword))),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := []string{"address", "address.city", "events", "events.at", "tags"}
	for _, p := range found {
		if _, ok := d.Field(p); !ok {
			t.Errorf("Field(%q) not found", p)
		}
	}
	if s, _ := d.Field("events.at"); !s.IsDate() {
		t.Error("events.at should be a date")
	}
	missing := []string{"phone", "address.zip", "tags.x", ""}
	for _, p := range missing {
		if _, ok := d.Field(p); ok {
			t.Errorf("Field(%q) should not be found", p)
		}
	}
}

func TestSchema_ReturnsCopy(t *testing.T) {
	d, _ := New("contacts", WithField("name", field.Scalar(field.String)))
	s := d.Schema()
	s["other"] = field.Scalar(field.String)
	if _, ok := d.Field("other"); ok {
		t.Error("Schema() must return a copy")
	}
}

// --- Registry ---

func TestRegistry(t *testing.T) {
	a, _ := New("b_res")
	b, _ := New("a_res")
	r, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(r.Names(), []string{"a_res", "b_res"}) {
		t.Errorf("names = %v", r.Names())
	}
	if r.Len() != 2 || r.All()[0].Name() != "a_res" {
		t.Errorf("unexpected All(): %v", r.All())
	}
	if _, err := r.Get("a_res"); err != nil {
		t.Errorf("Get: %v", err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	a, _ := New("contacts")
	if _, err := NewRegistry(a, a); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestTarget_Discriminator(t *testing.T) {
	if d := (Target{Source: "contacts", Index: "contacts"}).Discriminator(); d != "" {
		t.Errorf("unshared discriminator = %q", d)
	}
	if d := (Target{Resource: "urgent", Source: "contacts", Index: "crm", Shared: true}).Discriminator(); d != "contacts" {
		t.Errorf("shared discriminator = %q, want source", d)
	}
}

func TestRefreshAfterWrite(t *testing.T) {
	plain, _ := New("contacts")
	off, _ := New("logs", WithForceRefresh(false))
	on, _ := New("orders", WithForceRefresh(true))

	if !plain.RefreshAfterWrite(true) || plain.RefreshAfterWrite(false) {
		t.Error("no override must follow the global policy")
	}
	if off.RefreshAfterWrite(true) {
		t.Error("override false must win")
	}
	if !on.RefreshAfterWrite(false) {
		t.Error("override true must win")
	}
}
