package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/eslayer/internal/db"
	"github.com/kailas-cloud/eslayer/internal/domain/resource"
	"github.com/kailas-cloud/eslayer/internal/repository/index"
)

// timestampLayout renders millisecond precision, which every supported
// engine accepts under strict_date_optional_time.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// buildSource stamps write metadata onto fields and marshals the source.
// An existing _created is kept; _updated is always set to now.
func buildSource(fields map[string]any, t index.Target, now time.Time) ([]byte, error) {
	src := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		src[k] = v
	}
	stamp := now.UTC().Format(timestampLayout)
	if v, ok := src[resource.FieldCreated]; !ok || v == nil {
		src[resource.FieldCreated] = stamp
	}
	src[resource.FieldUpdated] = stamp
	if d := t.Discriminator(); d != "" {
		src[resource.FieldResource] = d
	}
	data, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

// buildPatch marshals a partial update, refreshing _updated.
func buildPatch(fields map[string]any, now time.Time) ([]byte, error) {
	changes := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		changes[k] = v
	}
	changes[resource.FieldUpdated] = now.UTC().Format(timestampLayout)
	data, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}
	return data, nil
}

// keepCreated carries the stored _created into a replacement source that
// does not set one.
func keepCreated(fields map[string]any, cur db.Document) map[string]any {
	if v, ok := fields[resource.FieldCreated]; ok && v != nil {
		return fields
	}
	created := gjson.GetBytes(cur.Source, resource.FieldCreated)
	if !created.Exists() || created.Type == gjson.Null {
		return fields
	}
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[resource.FieldCreated] = created.String()
	return out
}
