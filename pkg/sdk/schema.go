package eslayer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

const tagKey = "eslayer"

// schemaMeta holds parsed struct tag metadata, cached per Index.
type schemaMeta struct {
	typ   reflect.Type
	idIdx int // -1 if T carries no id field
}

// parseSchema reflects on T and finds the field tagged `eslayer:"id"`.
// Every other field travels through encoding/json.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("eslayer: type %v is not a struct", t)
	}

	meta := &schemaMeta{typ: t, idIdx: -1}
	for i := range t.NumField() {
		f := t.Field(i)
		switch tag := f.Tag.Get(tagKey); tag {
		case "", "-":
			continue
		case "id":
			if meta.idIdx >= 0 {
				return nil, fmt.Errorf("eslayer: %s: duplicate id field %s", t, f.Name)
			}
			if f.Type.Kind() != reflect.String {
				return nil, fmt.Errorf("eslayer: %s.%s: id field must be a string", t, f.Name)
			}
			if !f.IsExported() {
				return nil, fmt.Errorf("eslayer: %s.%s: id field must be exported", t, f.Name)
			}
			meta.idIdx = i
		default:
			return nil, fmt.Errorf("eslayer: %s.%s: unknown tag %q", t, f.Name, tag)
		}
	}
	return meta, nil
}

// id returns the id carried by item.
func (m *schemaMeta) id(item any) string {
	if m.idIdx < 0 {
		return ""
	}
	return reflect.ValueOf(item).Field(m.idIdx).String()
}

// toFields encodes item as document fields. The id is returned separately.
func (m *schemaMeta) toFields(item any) (Fields, string, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", m.typ, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", m.typ, err)
	}
	return f, m.id(item), nil
}

// fromItem decodes a stored document into a new T value.
func (m *schemaMeta) fromItem(it Item) (any, error) {
	data, err := json.Marshal(it.Source())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.typ, err)
	}
	v := reflect.New(m.typ)
	if err := json.Unmarshal(data, v.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.typ, err)
	}
	if m.idIdx >= 0 {
		v.Elem().Field(m.idIdx).SetString(it.ID())
	}
	return v.Elem().Interface(), nil
}
