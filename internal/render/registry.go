package render

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/cache"
	"github.com/goliatone/go-pagecms/internal/validation"
)

// BlockRenderer writes the html of one block type.
type BlockRenderer interface {
	Type() string
	Render(ctx context.Context, bc *BlockContext, w io.Writer) error
}

// SettingsSchemaProvider exposes a JSON schema for block settings.
type SettingsSchemaProvider interface {
	SettingsSchema() map[string]any
}

// DefaultSettingsProvider supplies settings merged under the block's own.
type DefaultSettingsProvider interface {
	DefaultSettings() map[string]any
}

// ContextualRenderer marks output that varies per visitor. Such blocks are
// only cached by backends that are contextual themselves.
type ContextualRenderer interface {
	Contextual() bool
}

// CacheKeysProvider adds keys to the required cache key set.
type CacheKeysProvider interface {
	CacheKeys(bc *BlockContext) cache.Keys
}

// CacheTTLProvider overrides the default ttl of a block type.
type CacheTTLProvider interface {
	CacheTTL() time.Duration
}

type entry struct {
	renderer BlockRenderer
	schema   *validation.Schema
}

// Registry maps block types to renderers. It is filled at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a renderer and compiles its settings schema.
func (r *Registry) Register(renderer BlockRenderer) error {
	if renderer == nil {
		return ErrRendererInvalid
	}
	blockType := normalizeType(renderer.Type())
	if blockType == "" {
		return ErrRendererInvalid
	}
	e := entry{renderer: renderer}
	if provider, ok := renderer.(SettingsSchemaProvider); ok {
		if raw := provider.SettingsSchema(); len(raw) > 0 {
			schema, err := validation.Compile(raw)
			if err != nil {
				return fmt.Errorf("renderer %s: %w", blockType, err)
			}
			e.schema = schema
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[blockType]; exists {
		return fmt.Errorf("%w: %s", ErrRendererExists, blockType)
	}
	r.entries[blockType] = e
	return nil
}

// MustRegister panics when Register fails.
func (r *Registry) MustRegister(renderers ...BlockRenderer) {
	for _, renderer := range renderers {
		if err := r.Register(renderer); err != nil {
			panic(err)
		}
	}
}

// Get returns the renderer of blockType or an UnknownBlockTypeError.
func (r *Registry) Get(blockType string) (BlockRenderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[normalizeType(blockType)]
	if !ok {
		return nil, &UnknownBlockTypeError{Type: blockType}
	}
	return e.renderer, nil
}

// Types lists the registered block types in order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for blockType := range r.entries {
		out = append(out, blockType)
	}
	sort.Strings(out)
	return out
}

// Settings merges the renderer defaults with the block settings.
func (r *Registry) Settings(block *blocks.Block) (map[string]any, error) {
	renderer, err := r.Get(block.Type)
	if err != nil {
		return nil, err
	}
	return mergeSettings(renderer, block), nil
}

// Validate checks block settings against the renderer schema. It satisfies
// blocks.SettingsValidator so editors get field level errors on save.
func (r *Registry) Validate(block *blocks.Block) error {
	if block == nil {
		return nil
	}
	r.mu.RLock()
	e, ok := r.entries[normalizeType(block.Type)]
	r.mu.RUnlock()
	if !ok {
		return &UnknownBlockTypeError{Type: block.Type}
	}
	if e.schema == nil {
		return nil
	}
	return e.schema.Validate(mergeSettings(e.renderer, block))
}

func mergeSettings(renderer BlockRenderer, block *blocks.Block) map[string]any {
	merged := map[string]any{}
	if provider, ok := renderer.(DefaultSettingsProvider); ok {
		for key, value := range provider.DefaultSettings() {
			merged[key] = value
		}
	}
	for key, value := range blocks.CloneSettings(block.Settings) {
		merged[key] = value
	}
	return merged
}

func normalizeType(blockType string) string {
	return strings.ToLower(strings.TrimSpace(blockType))
}
