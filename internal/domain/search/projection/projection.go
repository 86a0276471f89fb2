package projection

import "sort"

// Projection selects the source fields returned with each hit.
type Projection struct {
	include []string
	exclude []string
}

// New builds a projection. A field listed in both lists is excluded.
func New(include, exclude []string) Projection {
	ex := dedupe(exclude)
	excluded := make(map[string]bool, len(ex))
	for _, f := range ex {
		excluded[f] = true
	}
	var in []string
	for _, f := range dedupe(include) {
		if !excluded[f] {
			in = append(in, f)
		}
	}
	return Projection{include: in, exclude: ex}
}

// FromMap reads the framework's {"field": 1, "other": 0} projection form.
func FromMap(m map[string]int) Projection {
	var include, exclude []string
	for f, v := range m {
		if v == 0 {
			exclude = append(exclude, f)
		} else {
			include = append(include, f)
		}
	}
	return New(include, exclude)
}

// Include returns the included fields, sorted.
func (p Projection) Include() []string { return append([]string(nil), p.include...) }

// Exclude returns the excluded fields, sorted.
func (p Projection) Exclude() []string { return append([]string(nil), p.exclude...) }

// IsZero reports whether the projection selects the full source.
func (p Projection) IsZero() bool { return len(p.include) == 0 && len(p.exclude) == 0 }

// Source renders the engine _source filter.
func (p Projection) Source() map[string]any {
	out := make(map[string]any, 2)
	if len(p.include) > 0 {
		out["includes"] = p.Include()
	}
	if len(p.exclude) > 0 {
		out["excludes"] = p.Exclude()
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, f := range in {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
