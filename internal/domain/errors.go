package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing resource or document.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSchema signals an invalid schema definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrInvalidQuery signals a query the engine cannot accept.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnknownFacet signals a request for an undeclared facet.
	ErrUnknownFacet = errors.New("unknown facet")
	// ErrProvisioning signals a failed index creation.
	ErrProvisioning = errors.New("index provisioning failed")
	// ErrTranslation signals an unexpected engine response shape.
	ErrTranslation = errors.New("result translation failed")
	// ErrConflict signals an optimistic locking conflict.
	ErrConflict = errors.New("version conflict")
	// ErrUnavailable signals that the engine cannot be reached.
	ErrUnavailable = errors.New("backend unavailable")
)

// SchemaError names the field whose declared type cannot be mapped.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", ErrInvalidSchema.Error(), e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

// NewSchemaError creates a schema error for a dotted field path.
func NewSchemaError(field, reason string) error {
	return &SchemaError{Field: field, Reason: reason}
}

// UnknownFacetError lists the requested facets a resource does not declare.
type UnknownFacetError struct {
	Resource string
	Facets   []string
}

func (e *UnknownFacetError) Error() string {
	return fmt.Sprintf("%s for resource %q: %s", ErrUnknownFacet.Error(), e.Resource, strings.Join(e.Facets, ", "))
}

func (e *UnknownFacetError) Unwrap() error { return ErrUnknownFacet }

// IndexProvisioningError wraps the engine failure that prevented index creation.
type IndexProvisioningError struct {
	Resource string
	Index    string
	Err      error
}

func (e *IndexProvisioningError) Error() string {
	return fmt.Sprintf("%s: resource %q index %q: %v", ErrProvisioning.Error(), e.Resource, e.Index, e.Err)
}

// Unwrap exposes both the sentinel and the engine cause.
func (e *IndexProvisioningError) Unwrap() []error { return []error{ErrProvisioning, e.Err} }

// ResultTranslationError describes an engine response that could not be reshaped.
type ResultTranslationError struct {
	Resource string
	Reason   string
}

func (e *ResultTranslationError) Error() string {
	return fmt.Sprintf("%s for resource %q: %s", ErrTranslation.Error(), e.Resource, e.Reason)
}

func (e *ResultTranslationError) Unwrap() error { return ErrTranslation }

// NewTranslationError creates a result translation error.
func NewTranslationError(resource, format string, args ...any) error {
	return &ResultTranslationError{Resource: resource, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError carries the currently stored version when it could be read.
type ConflictError struct {
	Resource string
	ID       string
	Current  *Version
}

func (e *ConflictError) Error() string {
	if e.Current == nil {
		return fmt.Sprintf("%s: %s/%s", ErrConflict.Error(), e.Resource, e.ID)
	}
	return fmt.Sprintf("%s: %s/%s: current version is %s", ErrConflict.Error(), e.Resource, e.ID, e.Current.ETag())
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError identifies the missing document.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Resource, e.ID, ErrNotFound.Error())
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// BackendUnavailableError wraps connectivity and timeout failures.
type BackendUnavailableError struct {
	Op  string
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUnavailable.Error(), e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the transport cause.
func (e *BackendUnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }
