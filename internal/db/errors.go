package db

import (
	"errors"
	"strconv"
)

// Sentinel errors for engine operations.
var (
	ErrIndexNotFound    = errors.New("db: index not found")
	ErrIndexExists      = errors.New("db: index already exists")
	ErrDocumentNotFound = errors.New("db: document not found")
	ErrVersionConflict  = errors.New("db: version conflict")
	ErrBadRequest       = errors.New("db: bad request")
	ErrUnavailable      = errors.New("db: engine unavailable")
)

// Op constants name engine endpoints for error context.
const (
	OpInfo          = "info"
	OpCreateIndex   = "indices.create"
	OpDeleteIndex   = "indices.delete"
	OpIndexExists   = "indices.exists"
	OpPutMapping    = "indices.put_mapping"
	OpPutSettings   = "indices.put_settings"
	OpCloseIndex    = "indices.close"
	OpOpenIndex     = "indices.open"
	OpRefresh       = "indices.refresh"
	OpGet           = "get"
	OpMultiGet      = "mget"
	OpIndex         = "index"
	OpUpdate        = "update"
	OpDelete        = "delete"
	OpDeleteByQuery = "delete_by_query"
	OpBulk          = "bulk"
	OpSearch        = "search"
	OpCount         = "count"
)

// Error wraps an underlying error with the operation name and HTTP status.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return e.Op + " [" + strconv.Itoa(e.Status) + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
