package snapshots

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-pagecms/internal/domain"
)

var (
	ErrPageRequired     = errors.New("snapshots: page is required")
	ErrFieldUnsupported = errors.New("snapshots: lookup field is not supported")
	// ErrDocumentInvalid marks a content document that is structurally
	// broken. Loading never returns a partially populated page.
	ErrDocumentInvalid = fmt.Errorf("snapshots: content document invalid: %w", domain.ErrValidation)
	ErrCodecUnknown    = errors.New("snapshots: unknown codec")
)

// NotFoundError is returned when no snapshot matches a lookup.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot %q not found", e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return domain.ErrNotFound
}

// FieldError reports a document field that cannot be decoded.
type FieldError struct {
	Path  string
	Value any
	Cause error
}

func (e *FieldError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("snapshots: field %s: %v (value %#v)", e.Path, e.Cause, e.Value)
	}
	return fmt.Sprintf("snapshots: field %s has invalid value %#v", e.Path, e.Value)
}

func (e *FieldError) Unwrap() error {
	return ErrDocumentInvalid
}
