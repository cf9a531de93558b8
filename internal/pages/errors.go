package pages

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-pagecms/internal/domain"
)

var (
	ErrSiteRequired     = errors.New("pages: site is required")
	ErrNameRequired     = errors.New("pages: name is required")
	ErrRouteRequired    = errors.New("pages: route name is required")
	ErrSlugInvalid      = errors.New("pages: slug contains invalid characters")
	ErrURLExists        = errors.New("pages: url already exists on site")
	ErrParentSiteDiffer = errors.New("pages: parent belongs to another site")
	ErrParentCycle      = errors.New("pages: parent assignment creates hierarchy cycle")
	ErrFieldUnsupported = errors.New("pages: lookup field is not supported")
)

// PageNotFoundError is returned when a lookup by field finds no page.
type PageNotFoundError struct {
	Field Field
	Value string
}

func (e *PageNotFoundError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("page %q not found", e.Value)
	}
	return fmt.Sprintf("page with %s %q not found", e.Field, e.Value)
}

func (e *PageNotFoundError) Unwrap() error {
	return domain.ErrNotFound
}
