package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/cache"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// SettingTTL overrides the cache ttl of one block, in seconds.
const SettingTTL = "ttl"

// BlockContext is what a renderer sees of the block being rendered.
type BlockContext struct {
	Block    *blocks.Block
	Page     *pages.Page
	Settings map[string]any
	Manager  *manager.Manager

	renderer *Renderer
}

// Setting returns a merged setting value.
func (bc *BlockContext) Setting(key string) (any, bool) {
	value, ok := bc.Settings[key]
	return value, ok
}

// StringSetting returns a merged setting as a string, or fallback.
func (bc *BlockContext) StringSetting(key, fallback string) string {
	value, ok := bc.Settings[key]
	if !ok || value == nil {
		return fallback
	}
	return cast.ToString(value)
}

// RenderChildren renders the block's children in position order.
func (bc *BlockContext) RenderChildren(ctx context.Context, w io.Writer) error {
	for _, child := range bc.Block.Children {
		if err := bc.renderer.RenderBlock(ctx, bc.Manager, child, w); err != nil {
			return err
		}
	}
	return nil
}

// RenderBlock renders another block, such as the target of a shared block
// reference, through the same pipeline.
func (bc *BlockContext) RenderBlock(ctx context.Context, block *blocks.Block, w io.Writer) error {
	return bc.renderer.RenderBlock(ctx, bc.Manager, block, w)
}

// Renderer renders blocks cache first. A failing block renders as empty
// output unless debug is set, in which case the failure aborts the page.
type Renderer struct {
	registry *Registry
	cache    *cache.Router
	debug    bool
	ttl      time.Duration
	logger   interfaces.Logger
}

type Option func(*Renderer)

// WithCache routes rendered blocks through backends. Without it nothing is
// cached.
func WithCache(router *cache.Router) Option {
	return func(r *Renderer) {
		r.cache = router
	}
}

func WithDebug(debug bool) Option {
	return func(r *Renderer) {
		r.debug = debug
	}
}

// WithTTL sets the default ttl of cached blocks.
func WithTTL(ttl time.Duration) Option {
	return func(r *Renderer) {
		r.ttl = ttl
	}
}

func WithLogger(logger interfaces.Logger) Option {
	return func(r *Renderer) {
		r.logger = logging.Ensure(logger)
	}
}

func NewRenderer(registry *Registry, opts ...Option) *Renderer {
	r := &Renderer{
		registry: registry,
		ttl:      84600 * time.Second,
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Registry() *Registry { return r.registry }

func (r *Renderer) Debug() bool { return r.debug }

// RenderContainer renders the top level container name of source. A missing
// container in snapshot mode renders nothing.
func (r *Renderer) RenderContainer(ctx context.Context, m *manager.Manager, source manager.PageSource, name string, w io.Writer) error {
	container, err := m.FindContainer(ctx, name, source, nil)
	if err != nil {
		return r.contain(ctx, fmt.Errorf("find container %q: %w", name, err))
	}
	if container == nil {
		return nil
	}
	return r.RenderBlock(ctx, m, container, w)
}

// RenderBlock writes one block. Disabled blocks write nothing.
func (r *Renderer) RenderBlock(ctx context.Context, m *manager.Manager, block *blocks.Block, w io.Writer) error {
	if block == nil || !block.Enabled {
		return nil
	}
	renderer, err := r.registry.Get(block.Type)
	if err != nil {
		return r.contain(ctx, err, "block_id", block.ID, "type", block.Type)
	}
	bc := r.blockContext(m, block, renderer)
	keys := r.Keys(bc, renderer)

	backend, volatile := r.backendFor(block.Type, renderer)
	if volatile {
		markVolatile(ctx)
	}
	if backend != nil {
		if element := r.lookup(ctx, backend, keys); element != nil {
			_, err := io.WriteString(w, element.Value)
			return err
		}
	}

	scope := &volatileScope{}
	content, err := r.renderIsolated(context.WithValue(ctx, volatileKey{}, scope), bc, renderer)
	if err != nil {
		return r.contain(ctx, err, "block_id", block.ID, "type", block.Type)
	}
	// A contextual descendant keeps this fragment and its ancestors off
	// shared backends. An edge backend stops the chain.
	if scope.marked.Load() && (backend == nil || !backend.IsContextual()) {
		markVolatile(ctx)
		backend = nil
	}
	if backend != nil {
		if _, err := backend.Set(ctx, keys, content, r.ttlFor(bc, renderer), nil); err != nil {
			logging.ForContext(r.logger, ctx).Warn("render.cache.set_failed", "block_id", block.ID, "backend", backend.Name(), "error", err)
		}
	}
	_, err = io.WriteString(w, content)
	return err
}

// RenderFragment renders a block without consulting any cache. The cache
// fulfillment endpoints serve its output.
func (r *Renderer) RenderFragment(ctx context.Context, m *manager.Manager, block *blocks.Block) (string, error) {
	if block == nil || !block.Enabled {
		return "", nil
	}
	renderer, err := r.registry.Get(block.Type)
	if err != nil {
		return "", err
	}
	return r.renderIsolated(ctx, r.blockContext(m, block, renderer), renderer)
}

// Keys builds the cache keys of a block: the required set plus renderer
// extras.
func (r *Renderer) Keys(bc *BlockContext, renderer BlockRenderer) cache.Keys {
	keys := cache.Keys{}
	if provider, ok := renderer.(CacheKeysProvider); ok {
		for name, value := range provider.CacheKeys(bc) {
			keys[name] = value
		}
	}
	keys[cache.KeyBlockID] = bc.Block.ID.String()
	keys[cache.KeyPageID] = pageID(bc).String()
	keys[cache.KeyManager] = bc.Manager.Code()
	keys[cache.KeyUpdatedAt] = strconv.FormatInt(bc.Block.UpdatedAt.Unix(), 10)
	return keys
}

func (r *Renderer) blockContext(m *manager.Manager, block *blocks.Block, renderer BlockRenderer) *BlockContext {
	bc := &BlockContext{
		Block:    block,
		Settings: mergeSettings(renderer, block),
		Manager:  m,
		renderer: r,
	}
	if current := m.GetCurrentPage(); current != nil {
		bc.Page = current.Page()
	}
	return bc
}

// backendFor returns nil when the block must bypass caching. volatile reports
// contextual output that no backend in the chain may store.
func (r *Renderer) backendFor(blockType string, renderer BlockRenderer) (backend cache.Backend, volatile bool) {
	contextual := false
	if c, ok := renderer.(ContextualRenderer); ok {
		contextual = c.Contextual()
	}
	if r.cache == nil {
		return nil, contextual
	}
	backend = r.cache.ForType(blockType)
	if backend == nil {
		return nil, contextual
	}
	if contextual && !backend.IsContextual() {
		return nil, true
	}
	return backend, false
}

type volatileKey struct{}

// volatileScope is set by any descendant whose output varies per visitor.
type volatileScope struct {
	marked atomic.Bool
}

func markVolatile(ctx context.Context) {
	if scope, ok := ctx.Value(volatileKey{}).(*volatileScope); ok {
		scope.marked.Store(true)
	}
}

// lookup treats backend failures as misses.
func (r *Renderer) lookup(ctx context.Context, backend cache.Backend, keys cache.Keys) *cache.Element {
	has, err := backend.Has(ctx, keys)
	if err != nil || !has {
		if err != nil {
			logging.ForContext(r.logger, ctx).Warn("render.cache.has_failed", "backend", backend.Name(), "error", err)
		}
		return nil
	}
	element, err := backend.Get(ctx, keys)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logging.ForContext(r.logger, ctx).Warn("render.cache.get_failed", "backend", backend.Name(), "error", err)
		}
		return nil
	}
	return element
}

func (r *Renderer) renderIsolated(ctx context.Context, bc *BlockContext, renderer BlockRenderer) (content string, err error) {
	var buf bytes.Buffer
	defer func() {
		if recovered := recover(); recovered != nil {
			content = ""
			err = &RenderError{BlockID: bc.Block.ID, Type: bc.Block.Type, Panic: recovered}
		}
	}()
	if renderErr := renderer.Render(ctx, bc, &buf); renderErr != nil {
		var rendered *RenderError
		if errors.As(renderErr, &rendered) {
			return "", renderErr
		}
		return "", &RenderError{BlockID: bc.Block.ID, Type: bc.Block.Type, Cause: renderErr}
	}
	return buf.String(), nil
}

// contain logs err and swallows it outside debug mode.
func (r *Renderer) contain(ctx context.Context, err error, args ...any) error {
	if r.debug {
		return err
	}
	logging.ForContext(r.logger, ctx).Error("render.block.failed", append(args, "error", err)...)
	return nil
}

func (r *Renderer) ttlFor(bc *BlockContext, renderer BlockRenderer) time.Duration {
	if value, ok := bc.Settings[SettingTTL]; ok {
		if seconds, err := cast.ToInt64E(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	if provider, ok := renderer.(CacheTTLProvider); ok {
		return provider.CacheTTL()
	}
	return r.ttl
}

// pageID keys shared blocks by the page showing them.
func pageID(bc *BlockContext) uuid.UUID {
	if bc.Block.PageID != nil {
		return *bc.Block.PageID
	}
	if bc.Page != nil {
		return bc.Page.ID
	}
	return uuid.Nil
}
