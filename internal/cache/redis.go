package cache

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisBackend stores elements in a shared key/value server under
// prefix + HashKeys(keys).
type RedisBackend struct {
	opts       options
	client     redis.UniversalClient
	prefix     string
	contextual bool
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client redis.UniversalClient, prefix string, contextual bool, opts ...Option) *RedisBackend {
	return &RedisBackend{
		opts:       newOptions(opts),
		client:     client,
		prefix:     prefix,
		contextual: contextual,
	}
}

// NewRedisBackendFromURL parses a redis:// url and builds the backend.
func NewRedisBackendFromURL(rawURL, prefix string, contextual bool, opts ...Option) (*RedisBackend, error) {
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	backend := NewRedisBackend(nil, prefix, contextual, opts...)
	redisOpts.DialTimeout = backend.opts.timeout
	redisOpts.ReadTimeout = backend.opts.timeout
	redisOpts.WriteTimeout = backend.opts.timeout
	backend.client = redis.NewClient(redisOpts)
	return backend, nil
}

func (*RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, keys Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	raw, err := b.client.Get(ctx, b.key(keys)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, backendError(b.Name(), "get", err)
	}
	var element Element
	if err := json.Unmarshal(raw, &element); err != nil {
		return nil, backendError(b.Name(), "decode", err)
	}
	if element.IsExpired(b.opts.now()) {
		return nil, ErrCacheMiss
	}
	return &element, nil
}

func (b *RedisBackend) Set(ctx context.Context, keys Keys, value string, ttl time.Duration, contextual Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	element := newElement(keys, value, ttl, contextual, b.opts.now())
	raw, err := json.Marshal(element)
	if err != nil {
		return nil, backendError(b.Name(), "encode", err)
	}
	expiration := ttl
	if expiration < 0 {
		expiration = 0
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	if err := b.client.Set(ctx, b.key(keys), raw, expiration).Err(); err != nil {
		return nil, backendError(b.Name(), "set", err)
	}
	return element, nil
}

func (b *RedisBackend) Has(ctx context.Context, keys Keys) (bool, error) {
	_, err := b.Get(ctx, keys)
	return hasFromGet(err)
}

// Flush deletes the element of a complete key map directly. A partial map
// scans the prefix and deletes every element it matches.
func (b *RedisBackend) Flush(ctx context.Context, keys Keys) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	if ValidateKeys(keys) == nil {
		if err := b.client.Del(ctx, b.key(keys)).Err(); err != nil {
			return false, backendError(b.Name(), "flush", err)
		}
		return true, nil
	}
	err := b.scan(ctx, func(batch []string) error {
		values, err := b.client.MGet(ctx, batch...).Result()
		if err != nil {
			return err
		}
		var matched []string
		for i, value := range values {
			raw, ok := value.(string)
			if !ok {
				continue
			}
			var element Element
			if json.Unmarshal([]byte(raw), &element) != nil {
				continue
			}
			if element.Keys.Matches(keys) {
				matched = append(matched, batch[i])
			}
		}
		if len(matched) == 0 {
			return nil
		}
		return b.client.Del(ctx, matched...).Err()
	})
	if err != nil {
		return false, backendError(b.Name(), "flush", err)
	}
	return true, nil
}

// FlushAll deletes every key under the prefix with SCAN and DEL.
func (b *RedisBackend) FlushAll(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	err := b.scan(ctx, func(batch []string) error {
		return b.client.Del(ctx, batch...).Err()
	})
	if err != nil {
		return false, backendError(b.Name(), "flush_all", err)
	}
	return true, nil
}

func (b *RedisBackend) IsContextual() bool { return b.contextual }

// Close releases the client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) key(keys Keys) string {
	return b.prefix + HashKeys(keys)
}

func (b *RedisBackend) scan(ctx context.Context, fn func([]string) error) error {
	var cursor uint64
	for {
		batch, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
