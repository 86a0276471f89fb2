package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// maxIndexNameBytes is the engine limit on index name length.
const maxIndexNameBytes = 255

// IndexDefinition is a complete index creation request.
type IndexDefinition struct {
	Name     string
	Settings map[string]any
	Mappings map[string]any
	Aliases  []string
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIndexName(idx.Name) {
		return fmt.Errorf("index name %q contains invalid characters", idx.Name)
	}
	seen := make(map[string]bool, len(idx.Aliases))
	for _, a := range idx.Aliases {
		if !IsValidIndexName(a) {
			return fmt.Errorf("alias %q contains invalid characters", a)
		}
		if a == idx.Name {
			return fmt.Errorf("alias %q equals index name", a)
		}
		if seen[a] {
			return errors.New("duplicate alias: " + a)
		}
		seen[a] = true
	}
	return nil
}

// Body renders the creation body. Map keys are sorted by encoding/json,
// so equal definitions always render identical bytes.
func (idx *IndexDefinition) Body() ([]byte, error) {
	body := make(map[string]any, 3)
	if len(idx.Settings) > 0 {
		body["settings"] = idx.Settings
	}
	if len(idx.Mappings) > 0 {
		body["mappings"] = idx.Mappings
	}
	if len(idx.Aliases) > 0 {
		aliases := make(map[string]any, len(idx.Aliases))
		for _, a := range idx.Aliases {
			aliases[a] = map[string]any{}
		}
		body["aliases"] = aliases
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal index %s: %w", idx.Name, err)
	}
	return b, nil
}

// IsValidIndexName reports whether s is accepted by the engine as an index name:
// lowercase, no path or wildcard characters, not starting with '-', '_' or '+'.
func IsValidIndexName(s string) bool {
	if s == "" || s == "." || s == ".." || len(s) > maxIndexNameBytes {
		return false
	}
	switch s[0] {
	case '-', '_', '+':
		return false
	}
	if strings.ContainsAny(s, `\/*?"<>| ,#:`) {
		return false
	}
	return strings.ToLower(s) == s
}
