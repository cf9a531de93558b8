package domain

import "errors"

// Error kinds shared by every package. Package level errors unwrap to one of
// these so boundary code can map them without importing every package.
var (
	// ErrNotFound covers pages, blocks, snapshots, sites and managers.
	ErrNotFound = errors.New("pagecms: not found")
	// ErrInternal signals missing configuration that must never be defaulted.
	ErrInternal = errors.New("pagecms: internal error")
	// ErrRenderFailure wraps a block renderer failure.
	ErrRenderFailure = errors.New("pagecms: render failure")
	// ErrCacheBackend wraps network or storage failures in a cache backend.
	ErrCacheBackend = errors.New("pagecms: cache backend failure")
	// ErrValidation marks settings or payloads rejected by validation.
	ErrValidation = errors.New("pagecms: validation failure")
)

// InternalError reports a configuration problem that aborts the operation.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	if e == nil || e.Reason == "" {
		return ErrInternal.Error()
	}
	return ErrInternal.Error() + ": " + e.Reason
}

func (e *InternalError) Unwrap() error {
	return ErrInternal
}

// NewInternalError builds an InternalError with the given reason.
func NewInternalError(reason string) error {
	return &InternalError{Reason: reason}
}

// IsNotFound reports whether err belongs to the NotFound kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
