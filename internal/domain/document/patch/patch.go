package patch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// Patch is a partial document update merged into the stored source.
// Nested objects merge recursively on the engine side; a nil value stores null.
type Patch struct {
	fields map[string]any
}

// New validates and creates a Patch. At least one field must be provided and
// engine metadata cannot be patched.
func New(fields map[string]any) (Patch, error) {
	if len(fields) == 0 {
		return Patch{}, fmt.Errorf("at least one field must be provided")
	}
	var reserved []string
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "" {
			return Patch{}, fmt.Errorf("empty field name")
		}
		if result.IsReserved(k) || k == resource.FieldResource || k == resource.FieldCreated {
			reserved = append(reserved, k)
			continue
		}
		out[k] = v
	}
	if len(reserved) > 0 {
		sort.Strings(reserved)
		return Patch{}, fmt.Errorf("cannot patch reserved fields: %s", strings.Join(reserved, ", "))
	}
	return Patch{fields: out}, nil
}

// Fields returns a shallow copy of the changed fields.
func (p Patch) Fields() map[string]any {
	out := make(map[string]any, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

// Names returns the changed field names, sorted.
func (p Patch) Names() []string {
	out := make([]string, 0, len(p.fields))
	for k := range p.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
