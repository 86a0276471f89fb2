package eslayer

import "github.com/kailas-cloud/eslayer/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound      = domain.ErrNotFound
	ErrAlreadyExists = domain.ErrAlreadyExists
	ErrInvalidSchema = domain.ErrInvalidSchema
	ErrInvalidQuery  = domain.ErrInvalidQuery
	ErrUnknownFacet  = domain.ErrUnknownFacet
	ErrProvisioning  = domain.ErrProvisioning
	ErrTranslation   = domain.ErrTranslation
	ErrConflict      = domain.ErrConflict
	ErrUnavailable   = domain.ErrUnavailable
)

// Error types re-exported from the domain layer. Use errors.As() to inspect.
type (
	// ConflictError carries the stored version after a failed guarded write.
	ConflictError = domain.ConflictError
	// NotFoundError names the missing resource document.
	NotFoundError = domain.NotFoundError
	// BackendUnavailableError wraps connection failures and timeouts.
	BackendUnavailableError = domain.BackendUnavailableError
	// IndexProvisioningError wraps a failed index creation.
	IndexProvisioningError = domain.IndexProvisioningError
	SchemaError            = domain.SchemaError
	UnknownFacetError      = domain.UnknownFacetError
)
