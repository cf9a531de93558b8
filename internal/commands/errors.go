package commands

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-pagecms/internal/domain"
)

const (
	codeValidation     = "PAGECMS_COMMAND_INVALID"
	codeCanceled       = "PAGECMS_COMMAND_CANCELED"
	codeTimeout        = "PAGECMS_COMMAND_TIMEOUT"
	codeContext        = "PAGECMS_COMMAND_CONTEXT"
	codeFailed         = "PAGECMS_COMMAND_FAILED"
	codeNotFound       = "PAGECMS_NOT_FOUND"
	codeCacheBackend   = "PAGECMS_CACHE_BACKEND"
	codeRenderFailure  = "PAGECMS_RENDER_FAILED"
	codePayloadInvalid = "PAGECMS_PAYLOAD_INVALID"
)

func wrapValidationError(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "command validation failed").
		WithTextCode(codeValidation)
}

func wrapContextError(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command execution cancelled").
			WithTextCode(codeCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command execution deadline exceeded").
			WithTextCode(codeTimeout)
	default:
		return goerrors.Wrap(err, goerrors.CategoryCommand, "command context error").
			WithTextCode(codeContext)
	}
}

// wrapExecuteError tags failures with the text code of their domain kind.
// Payload validation raised by a service keeps the validation category.
func wrapExecuteError(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	if errors.Is(err, domain.ErrValidation) {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "command payload rejected").
			WithTextCode(codePayloadInvalid)
	}
	code := codeFailed
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = codeNotFound
	case errors.Is(err, domain.ErrCacheBackend):
		code = codeCacheBackend
	case errors.Is(err, domain.ErrRenderFailure):
		code = codeRenderFailure
	}
	return goerrors.Wrap(err, goerrors.CategoryCommand, "command execution failed").
		WithTextCode(code)
}
