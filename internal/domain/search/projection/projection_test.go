package projection

import (
	"reflect"
	"testing"
)

func TestNew_ExcludeWins(t *testing.T) {
	p := New([]string{"name", "email", "name"}, []string{"email", "secret"})

	if got := p.Include(); !reflect.DeepEqual(got, []string{"name"}) {
		t.Errorf("include = %v, want [name]", got)
	}
	if got := p.Exclude(); !reflect.DeepEqual(got, []string{"email", "secret"}) {
		t.Errorf("exclude = %v, want [email secret]", got)
	}
}

func TestFromMap(t *testing.T) {
	p := FromMap(map[string]int{"name": 1, "body": 0})
	src := p.Source()
	if !reflect.DeepEqual(src["includes"], []string{"name"}) {
		t.Errorf("includes = %v", src["includes"])
	}
	if !reflect.DeepEqual(src["excludes"], []string{"body"}) {
		t.Errorf("excludes = %v", src["excludes"])
	}
}

func TestZero(t *testing.T) {
	p := New(nil, nil)
	if !p.IsZero() {
		t.Error("expected zero projection")
	}
	if len(p.Source()) != 0 {
		t.Errorf("source = %v, want empty", p.Source())
	}
}
