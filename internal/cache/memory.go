package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goliatone/go-pagecms/internal/logging"
	"golang.org/x/sync/errgroup"
)

// MemoryBackend keeps elements in process. FlushAll also asks every peer
// process to flush through its purge endpoint, so a cluster of processes
// converges without a shared store.
type MemoryBackend struct {
	opts  options
	peers []string
	token string

	mu       sync.RWMutex
	elements map[string]*Element
}

// NewMemoryBackend builds the in-process backend. peers are purge endpoint
// urls; token is appended to each purge request.
func NewMemoryBackend(peers []string, token string, opts ...Option) *MemoryBackend {
	return &MemoryBackend{
		opts:     newOptions(opts),
		peers:    append([]string(nil), peers...),
		token:    token,
		elements: map[string]*Element{},
	}
}

func (*MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Get(_ context.Context, keys Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	hash := HashKeys(keys)
	b.mu.RLock()
	element, ok := b.elements[hash]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if element.IsExpired(b.opts.now()) {
		b.mu.Lock()
		if current, ok := b.elements[hash]; ok && current == element {
			delete(b.elements, hash)
		}
		b.mu.Unlock()
		return nil, ErrCacheMiss
	}
	copied := *element
	return &copied, nil
}

func (b *MemoryBackend) Set(_ context.Context, keys Keys, value string, ttl time.Duration, contextual Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	element := newElement(keys, value, ttl, contextual, b.opts.now())
	b.mu.Lock()
	b.elements[HashKeys(keys)] = element
	b.mu.Unlock()
	copied := *element
	return &copied, nil
}

func (b *MemoryBackend) Has(ctx context.Context, keys Keys) (bool, error) {
	_, err := b.Get(ctx, keys)
	return hasFromGet(err)
}

// Flush drops every element whose keys contain keys.
func (b *MemoryBackend) Flush(_ context.Context, keys Keys) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for hash, element := range b.elements {
		if element.Keys.Matches(keys) {
			delete(b.elements, hash)
		}
	}
	return true, nil
}

// FlushLocal clears this process only. The purge endpoint calls it.
func (b *MemoryBackend) FlushLocal() {
	b.mu.Lock()
	b.elements = map[string]*Element{}
	b.mu.Unlock()
}

func (b *MemoryBackend) FlushAll(ctx context.Context) (bool, error) {
	b.FlushLocal()
	if len(b.peers) == 0 {
		return true, nil
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, peer := range b.peers {
		group.Go(func() error {
			return b.purgePeer(groupCtx, peer)
		})
	}
	if err := group.Wait(); err != nil {
		logging.ForContext(b.opts.logger, ctx).Warn("cache.memory.peer_purge_failed", "error", err)
		return false, backendError(b.Name(), "flush_all", err)
	}
	return true, nil
}

func (*MemoryBackend) IsContextual() bool { return false }

// Len reports the number of stored elements, expired ones included.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.elements)
}

func (b *MemoryBackend) purgePeer(ctx context.Context, peer string) error {
	target, err := url.Parse(peer)
	if err != nil {
		return fmt.Errorf("peer %q: %w", peer, err)
	}
	query := target.Query()
	query.Set("token", b.token)
	target.RawQuery = query.Encode()

	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := b.opts.client.Do(req)
	if err != nil {
		return fmt.Errorf("peer %s: %w", target.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer %s: status %d", target.Host, resp.StatusCode)
	}
	return nil
}
