package db

import "encoding/json"

// DocRef addresses a single document.
type DocRef struct {
	Index string
	Type  string
	ID    string
}

// Meta is the engine metadata of a stored document.
type Meta struct {
	ID          string
	Index       string
	Type        string
	Version     int64
	SeqNo       int64
	PrimaryTerm int64
	Result      string
}

// Document is a fetched document with its raw source.
type Document struct {
	Meta
	Found  bool
	Source json.RawMessage
}

// WriteOptions controls concurrency and conflict behavior of a write.
type WriteOptions struct {
	// Create fails the write with ErrVersionConflict when the id exists.
	Create          bool
	IfSeqNo         *int64
	IfPrimaryTerm   *int64
	RetryOnConflict int
	Routing         string
}

// HasVersionCheck reports whether the write carries an optimistic concurrency guard.
func (o WriteOptions) HasVersionCheck() bool {
	return o.IfSeqNo != nil && o.IfPrimaryTerm != nil
}

// BulkItem is one document of a bulk write.
type BulkItem struct {
	ID     string
	Body   []byte
	Create bool
}

// BulkResult is the per-item outcome of a bulk write.
type BulkResult struct {
	Meta
	Err error
}
