package cache

import (
	"context"
	"time"
)

// NoopBackend caches nothing.
type NoopBackend struct{}

func NewNoopBackend() *NoopBackend {
	return &NoopBackend{}
}

func (*NoopBackend) Name() string { return "noop" }

func (*NoopBackend) Get(_ context.Context, keys Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	return nil, ErrNoopRead
}

func (*NoopBackend) Set(_ context.Context, keys Keys, value string, ttl time.Duration, contextual Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	return newElement(keys, value, ttl, contextual, time.Now()), nil
}

func (*NoopBackend) Has(_ context.Context, keys Keys) (bool, error) {
	if err := ValidateKeys(keys); err != nil {
		return false, err
	}
	return false, nil
}

func (*NoopBackend) Flush(context.Context, Keys) (bool, error) { return true, nil }

func (*NoopBackend) FlushAll(context.Context) (bool, error) { return true, nil }

func (*NoopBackend) IsContextual() bool { return false }
