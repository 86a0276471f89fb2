package eslayer

import (
	"github.com/kailas-cloud/eslayer/internal/domain"
	"github.com/kailas-cloud/eslayer/internal/domain/search/result"
)

// Version is the optimistic concurrency token of a stored document.
type Version = domain.Version

// ParseETag parses a token rendered by Version.ETag.
func ParseETag(s string) (Version, error) { return domain.ParseETag(s) }

// Item is one stored document: source fields plus reserved metadata keys
// such as "_id", "_version" and "_etag".
type Item = result.Item

// Page is one page of find results.
type Page = result.Response

// Bucket is one facet value with its document count.
type Bucket = result.Bucket

// Fields is a document body or a set of changes.
type Fields map[string]any

// ResourceInfo describes where a resource's documents live.
type ResourceInfo struct {
	Resource string
	Source   string
	Index    string
	Type     string // document type, v6 dialect only
	Shared   bool   // several resources store documents in Index
}

// BatchResult is the outcome of one item in InsertMany.
type BatchResult struct {
	ID      string
	Version Version
	OK      bool
	Err     error
}
