package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-pagecms/internal/domain"
)

var (
	// ErrCacheMiss reports that no live element exists for the keys.
	ErrCacheMiss = errors.New("cache: miss")
	// ErrNoopRead is returned when the noop backend is asked for a value.
	// Callers check Has first; reaching Get is a wiring mistake.
	ErrNoopRead = errors.New("cache: noop backend never serves values")
	// ErrBackendUnknown reports an unregistered backend code.
	ErrBackendUnknown = errors.New("cache: unknown backend")
)

// Element is a cached block rendering.
type Element struct {
	Keys           Keys          `json:"keys"`
	Value          string        `json:"value"`
	TTL            time.Duration `json:"ttl"`
	CreatedAt      time.Time     `json:"created_at"`
	ContextualKeys Keys          `json:"contextual_keys,omitempty"`
}

// IsExpired reports whether the element outlived its ttl. The element is
// still served at exactly created_at + ttl. A ttl of zero or less never
// expires.
func (e *Element) IsExpired(now time.Time) bool {
	if e == nil {
		return true
	}
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Backend stores rendered blocks. Get, Set and Has validate keys before
// doing anything else.
type Backend interface {
	Name() string
	Get(ctx context.Context, keys Keys) (*Element, error)
	Set(ctx context.Context, keys Keys, value string, ttl time.Duration, contextual Keys) (*Element, error)
	Has(ctx context.Context, keys Keys) (bool, error)
	Flush(ctx context.Context, keys Keys) (bool, error)
	FlushAll(ctx context.Context) (bool, error)
	// IsContextual reports whether the backend can hold content that varies
	// per visitor.
	IsContextual() bool
}

// BackendError wraps a network or storage failure of a backend.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{domain.ErrCacheBackend, e.Err}
}

func backendError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}

func newElement(keys Keys, value string, ttl time.Duration, contextual Keys, now time.Time) *Element {
	return &Element{
		Keys:           keys.Clone(),
		Value:          value,
		TTL:            ttl,
		CreatedAt:      now.UTC(),
		ContextualKeys: contextual.Clone(),
	}
}

// hasFromGet maps the result of a Get to the result of a Has.
func hasFromGet(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrCacheMiss):
		return false, nil
	default:
		return false, err
	}
}
