package document

import (
	"fmt"
	"unicode/utf8"

	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// MaxIDLength is the engine limit on document ids, in bytes.
const MaxIDLength = 512

// Document is a write payload: an optional id plus source fields (immutable value object).
type Document struct {
	id     string
	fields map[string]any
}

// New validates and creates a Document. An empty id is filled in on insert.
// A string "_id" field is taken as the id when id is empty; reserved metadata
// keys are dropped from the source.
func New(id string, fields map[string]any) (Document, error) {
	if id == "" {
		if s, ok := fields[result.FieldID].(string); ok {
			id = s
		}
	}
	if err := ValidateID(id); err != nil && id != "" {
		return Document{}, err
	}

	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "" {
			return Document{}, fmt.Errorf("empty field name")
		}
		if result.IsReserved(k) || k == resource.FieldResource {
			continue
		}
		clean[k] = v
	}
	return Document{id: id, fields: clean}, nil
}

// ValidateID checks an engine document id.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("document ID is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("document ID too long (max %d bytes)", MaxIDLength)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("document ID must be valid UTF-8")
	}
	return nil
}

// ID returns the document identifier, empty until assigned.
func (d Document) ID() string { return d.id }

// HasID reports whether an id is set.
func (d Document) HasID() bool { return d.id != "" }

// Fields returns a shallow copy of the source fields.
func (d Document) Fields() map[string]any {
	out := make(map[string]any, len(d.fields))
	for k, v := range d.fields {
		out[k] = v
	}
	return out
}

// WithID returns a copy carrying id.
func (d Document) WithID(id string) Document {
	return Document{id: id, fields: d.fields}
}
