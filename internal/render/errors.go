package render

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrUnknownBlockType is matched by every UnknownBlockTypeError.
	ErrUnknownBlockType = errors.New("render: unknown block type")
	ErrRendererExists   = errors.New("render: renderer already registered")
	ErrRendererInvalid  = errors.New("render: renderer type is required")
)

// UnknownBlockTypeError reports a block type without a registered renderer.
type UnknownBlockTypeError struct {
	Type string
}

func (e *UnknownBlockTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownBlockType.Error(), e.Type)
}

func (e *UnknownBlockTypeError) Unwrap() error {
	return ErrUnknownBlockType
}

// RenderError wraps a renderer failure or panic for one block.
type RenderError struct {
	BlockID uuid.UUID
	Type    string
	Cause   error
	// Panic holds the recovered value when the renderer panicked.
	Panic any
}

func (e *RenderError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("render block %s (%s): panic: %v", e.BlockID, e.Type, e.Panic)
	}
	return fmt.Sprintf("render block %s (%s): %v", e.BlockID, e.Type, e.Cause)
}

func (e *RenderError) Unwrap() []error {
	if e.Cause == nil {
		return []error{domain.ErrRenderFailure}
	}
	return []error{domain.ErrRenderFailure, e.Cause}
}
