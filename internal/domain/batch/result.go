package batch

import "github.com/kailas-cloud/eslayer/internal/domain"

// ItemStatus is the processing outcome of a single bulk item.
type ItemStatus string

// Bulk item status values.
const (
	StatusCreated ItemStatus = "created"
	StatusError   ItemStatus = "error"
)

// Result is the outcome of writing one item in a bulk insert.
type Result struct {
	id      string
	status  ItemStatus
	version domain.Version
	err     error
}

// NewCreated creates a successful result with the stored version.
func NewCreated(id string, v domain.Version) Result {
	return Result{id: id, status: StatusCreated, version: v}
}

// NewError creates a failed result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the document id.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Version returns the stored version of a created item.
func (r Result) Version() domain.Version { return r.version }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.status == StatusError {
			n++
		}
	}
	return n
}
