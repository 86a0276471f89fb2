package field

import (
	"reflect"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"string":   String,
		" String ": String,
		"datetime": Date,
		"dict":     Object,
		"float":    Number,
		"bool":     Boolean,
		"list":     List,
		"geometry": Kind("geometry"),
	}
	for in, want := range tests {
		if got := ParseKind(in); got != want {
			t.Errorf("ParseKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKind_IsScalar(t *testing.T) {
	for _, k := range []Kind{String, Text, Keyword, Integer, Number, Date, Boolean, ObjectID} {
		if !k.IsScalar() {
			t.Errorf("%q should be scalar", k)
		}
	}
	for _, k := range []Kind{Object, List, Mapped, Kind("geometry")} {
		if k.IsScalar() {
			t.Errorf("%q should not be scalar", k)
		}
	}
}

func TestScalarOptions(t *testing.T) {
	s := Scalar(Date, Formats("yyyy-MM-dd"), IgnoreMalformed())
	if !s.IsDate() || !s.IgnoresMalformed() {
		t.Errorf("unexpected date schema: %+v", s)
	}
	if got := s.Formats(); !reflect.DeepEqual(got, []string{"yyyy-MM-dd"}) {
		t.Errorf("formats = %v", got)
	}
	str := Scalar(String, Exact(), Analyzer("english"))
	if !str.IsExact() || str.Analyzer() != "english" {
		t.Errorf("unexpected string schema: %+v", str)
	}
}

func TestNestedCopiesProperties(t *testing.T) {
	props := map[string]Schema{"city": Scalar(String)}
	n := Nested(props, AsNestedType())
	props["zip"] = Scalar(Keyword)

	if len(n.Properties()) != 1 {
		t.Errorf("nested schema changed with its input: %v", n.Properties())
	}
	if !n.IsNested() || !n.IsNestedType() {
		t.Error("expected nested type object")
	}
}

func TestListOf(t *testing.T) {
	l := ListOf(Scalar(Date))
	if !l.IsList() {
		t.Fatal("expected list")
	}
	if !l.IsDate() {
		t.Error("list of dates should report IsDate")
	}
	e, ok := l.Elem()
	if !ok || e.Kind() != Date {
		t.Errorf("elem = %v, %v", e, ok)
	}
	if _, ok := Scalar(String).Elem(); ok {
		t.Error("scalar should have no element")
	}
}

func TestWalk(t *testing.T) {
	props := map[string]Schema{
		"name": Scalar(String),
		"address": Nested(map[string]Schema{
			"zip":  Scalar(Keyword),
			"city": Scalar(String),
		}),
		"events": ListOf(Nested(map[string]Schema{"at": Scalar(Date)})),
	}
	var paths []string
	Walk(props, func(path string, _ Schema) { paths = append(paths, path) })

	want := []string{"address", "address.city", "address.zip", "events", "events.at", "name"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}
