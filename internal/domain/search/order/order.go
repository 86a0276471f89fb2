package order

import (
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Field is one (field, direction) sort pair.
type Field struct {
	Name      string
	Direction Direction
}

// New validates a sort pair. An empty direction means ascending.
func New(name string, dir Direction) (Field, error) {
	if strings.TrimSpace(name) == "" {
		return Field{}, fmt.Errorf("sort field is required")
	}
	switch Direction(strings.ToLower(string(dir))) {
	case "", Asc:
		dir = Asc
	case Desc:
		dir = Desc
	default:
		return Field{}, fmt.Errorf("invalid sort direction %q for %q", dir, name)
	}
	return Field{Name: name, Direction: dir}, nil
}

// Parse reads "name,-created" style sort lists; a leading '-' means descending.
func Parse(s string) ([]Field, error) {
	var out []Field
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := Asc
		switch part[0] {
		case '-':
			dir, part = Desc, part[1:]
		case '+':
			part = part[1:]
		}
		f, err := New(part, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
