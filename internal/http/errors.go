package http

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/goliatone/go-pagecms/internal/cache"
	"github.com/goliatone/go-pagecms/internal/domain"
	"github.com/goliatone/go-pagecms/internal/validation"
)

var (
	// ErrTokenInvalid rejects fragment or flush requests with a bad token.
	ErrTokenInvalid = errors.New("http: token invalid")
	// ErrBadRequest marks malformed request parameters.
	ErrBadRequest = errors.New("http: bad request")
	// ErrRateLimited is returned when the flush endpoint is called too often.
	ErrRateLimited = errors.New("http: rate limited")
)

type errorResponse struct {
	Error   string                       `json:"error"`
	Message string                       `json:"message,omitempty"`
	Missing []string                     `json:"missing,omitempty"`
	Issues  []validation.ValidationIssue `json:"issues,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status, payload := mapError(err)
	writeJSON(w, status, payload)
}

// mapError maps error kinds to statuses.
func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: "unknown_error"}
	}

	var missing *cache.MissingKeysError
	if errors.As(err, &missing) {
		return http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error(), Missing: missing.Missing}
	}
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()}
	case errors.Is(err, ErrTokenInvalid):
		return http.StatusForbidden, errorResponse{Error: "forbidden", Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, errorResponse{Error: "validation_failed", Message: err.Error(), Issues: validation.Issues(err)}
	case errors.Is(err, domain.ErrCacheBackend):
		return http.StatusServiceUnavailable, errorResponse{Error: "cache_unavailable", Message: err.Error()}
	case errors.Is(err, domain.ErrRenderFailure):
		return http.StatusInternalServerError, errorResponse{Error: "render_failed", Message: err.Error()}
	case errors.Is(err, domain.ErrInternal):
		return http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: err.Error()}
}

// statusFor is the status mapError would answer for err.
func statusFor(err error) int {
	status, _ := mapError(err)
	return status
}
