package blocks

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-pagecms/internal/domain"
)

var (
	ErrKindInvalid           = errors.New("blocks: kind is invalid")
	ErrTypeRequired          = errors.New("blocks: type is required")
	ErrPageRequired          = errors.New("blocks: page is required")
	ErrContainerNameRequired = errors.New("blocks: container name is required")
	ErrSharedTargetRequired  = errors.New("blocks: shared reference requires settings.block_id")
	ErrSharedTargetNotShared = errors.New("blocks: referenced block belongs to a page")
	ErrParentPageMismatch    = errors.New("blocks: parent belongs to another page")
	ErrPositionInvalid       = errors.New("blocks: position cannot be negative")
	ErrTreeCycle             = errors.New("blocks: parent references form a cycle")
	ErrBlockExists           = errors.New("blocks: block id already exists")
)

// NotFoundError is returned when a block lookup misses.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("block %q not found", e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return domain.ErrNotFound
}
