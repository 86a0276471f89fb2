package resource

// Target is the physical location of a resource's documents.
type Target struct {
	Resource string
	Source   string
	Index    string
	// Type is the document type path segment; empty on typeless engines.
	Type string
	// Shared reports whether documents of other sources live in the same index.
	Shared bool
}

// Discriminator returns the value stamped into FieldResource, or "" when the
// index is not shared.
func (t Target) Discriminator() string {
	if !t.Shared {
		return ""
	}
	return t.Source
}
