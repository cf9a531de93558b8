package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Router picks the backend of each block type.
type Router struct {
	backends map[string]Backend
	byType   map[string]string
	fallback string
}

// NewRouter builds a router. Every code referenced by byType and fallback
// must be registered in backends.
func NewRouter(fallback string, backends map[string]Backend, byType map[string]string) (*Router, error) {
	r := &Router{
		backends: make(map[string]Backend, len(backends)),
		byType:   make(map[string]string, len(byType)),
		fallback: fallback,
	}
	for code, backend := range backends {
		if backend != nil {
			r.backends[code] = backend
		}
	}
	if _, ok := r.backends[fallback]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnknown, fallback)
	}
	for blockType, code := range byType {
		if _, ok := r.backends[code]; !ok {
			return nil, fmt.Errorf("%w: %s for block type %s", ErrBackendUnknown, code, blockType)
		}
		r.byType[blockType] = code
	}
	return r, nil
}

// Backend returns the backend registered under code.
func (r *Router) Backend(code string) (Backend, error) {
	backend, ok := r.backends[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnknown, code)
	}
	return backend, nil
}

// ForType returns the backend configured for blockType, else the default.
func (r *Router) ForType(blockType string) Backend {
	if code, ok := r.byType[blockType]; ok {
		return r.backends[code]
	}
	return r.backends[r.fallback]
}

// Memory returns the in-process backend when one is registered.
func (r *Router) Memory() (*MemoryBackend, bool) {
	for _, backend := range r.backends {
		if memory, ok := backend.(*MemoryBackend); ok {
			return memory, true
		}
	}
	return nil, false
}

// Codes lists registered backend codes in order.
func (r *Router) Codes() []string {
	codes := make([]string, 0, len(r.backends))
	for code := range r.backends {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Flush flushes keys on one backend, or on all of them when code is empty.
func (r *Router) Flush(ctx context.Context, code string, keys Keys) error {
	if code != "" {
		backend, err := r.Backend(code)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			_, err = backend.FlushAll(ctx)
		} else {
			_, err = backend.Flush(ctx, keys)
		}
		return err
	}
	if len(keys) == 0 {
		return r.FlushAll(ctx)
	}
	var errs []error
	for _, code := range r.Codes() {
		if _, err := r.backends[code].Flush(ctx, keys); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FlushAll flushes every backend and joins their failures.
func (r *Router) FlushAll(ctx context.Context) error {
	var errs []error
	for _, code := range r.Codes() {
		if _, err := r.backends[code].FlushAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases backends holding connections or files.
func (r *Router) Close() error {
	var errs []error
	for _, backend := range r.backends {
		if closer, ok := backend.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
