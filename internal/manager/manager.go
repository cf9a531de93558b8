package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"github.com/google/uuid"
)

// Manager resolves pages and blocks for one request through a page store,
// memoizing every page it returns.
type Manager struct {
	store     PageStore
	state     *State
	decorator *Decorator
	logger    interfaces.Logger

	// containers serializes find-or-create so a container is created once.
	containers sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

func WithDecorator(decorator *Decorator) Option {
	return func(m *Manager) {
		if decorator != nil {
			m.decorator = decorator
		}
	}
}

func WithLogger(logger interfaces.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.Ensure(logger)
	}
}

// New returns a manager with fresh request state.
func New(store PageStore, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		state:     newState(),
		decorator: NewDecorator(DecoratorConfig{}),
		logger:    logging.NoOp(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Mode() Mode {
	return m.store.Mode()
}

// Code is the manager code used in cache keys and fragment urls.
func (m *Manager) Code() string {
	return m.store.Mode().String()
}

func (m *Manager) GetPageByID(ctx context.Context, id uuid.UUID) (PageSource, error) {
	return m.getPageBy(ctx, uuid.Nil, pages.FieldID, id.String(), false)
}

func (m *Manager) GetPageByURL(ctx context.Context, siteID uuid.UUID, url string) (PageSource, error) {
	return m.getPageBy(ctx, siteID, pages.FieldURL, url, false)
}

func (m *Manager) GetPageByRouteName(ctx context.Context, siteID uuid.UUID, routeName string, create bool) (PageSource, error) {
	return m.getPageBy(ctx, siteID, pages.FieldRouteName, routeName, create)
}

func (m *Manager) GetPageByName(ctx context.Context, siteID uuid.UUID, name string, create bool) (PageSource, error) {
	return m.getPageBy(ctx, siteID, pages.FieldName, name, create)
}

func (m *Manager) GetPageByAlias(ctx context.Context, siteID uuid.UUID, alias string) (PageSource, error) {
	return m.getPageBy(ctx, siteID, pages.FieldAlias, alias, false)
}

// GetInternalPage resolves an internal page such as an error page.
func (m *Manager) GetInternalPage(ctx context.Context, siteID uuid.UUID, name string) (PageSource, error) {
	route := name
	if !strings.HasPrefix(route, pages.InternalRoutePrefix) {
		route = pages.InternalRoutePrefix + name
	}
	return m.getPageBy(ctx, siteID, pages.FieldRouteName, route, m.Mode() == ModeEditor)
}

func (m *Manager) getPageBy(ctx context.Context, siteID uuid.UUID, field pages.Field, value string, create bool) (PageSource, error) {
	if cached, ok := m.state.lookup(field, value); ok {
		return cached, nil
	}
	query := Query{SiteID: siteID, Field: field, Value: value}
	source, err := m.store.FindPage(ctx, query)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		if !create || m.Mode() != ModeEditor {
			if m.Mode() == ModeSnapshot {
				logging.ForContext(m.logger, ctx).Info("manager.page.not_published", "field", field, "value", value)
			}
			return nil, err
		}
		source, err = m.store.CreatePage(ctx, query)
		if err != nil {
			return nil, err
		}
		logging.ForContext(m.logger, ctx).Debug("manager.page.created", "field", field, "value", value, "page_id", source.Page().ID)
	}
	source = m.state.remember(field, value, source)
	tree, err := source.Blocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load blocks of page %s: %w", source.Page().ID, err)
	}
	m.state.indexBlocks(blocks.Flatten(tree.Roots))
	return source, nil
}

// SetCurrentPage records the page served by this request.
func (m *Manager) SetCurrentPage(source PageSource) {
	m.state.setCurrent(source)
}

// GetCurrentPage returns the page recorded by SetCurrentPage, or nil.
func (m *Manager) GetCurrentPage() PageSource {
	return m.state.getCurrent()
}

// GetBlock returns a block of a loaded page, or resolves it through the
// store, which covers shared blocks.
func (m *Manager) GetBlock(ctx context.Context, id uuid.UUID) (*blocks.Block, error) {
	if block, ok := m.state.block(id); ok {
		return block, nil
	}
	block, err := m.store.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	m.state.indexBlocks([]*blocks.Block{block})
	return block, nil
}

// Blocks returns the block forest of a resolved page.
func (m *Manager) Blocks(ctx context.Context, source PageSource) (*blocks.Tree, error) {
	return source.Blocks(ctx)
}

// FindContainer returns parent when given. Otherwise it returns the top
// level container named name; the editor store creates a missing one, the
// snapshot store returns nil.
func (m *Manager) FindContainer(ctx context.Context, name string, source PageSource, parent *blocks.Block) (*blocks.Block, error) {
	if parent != nil {
		return parent, nil
	}
	if source == nil {
		return nil, fmt.Errorf("manager: page required to find container %q", name)
	}
	m.containers.Lock()
	defer m.containers.Unlock()

	tree, err := source.Blocks(ctx)
	if err != nil {
		return nil, err
	}
	if container, ok := tree.Container(name); ok {
		return container, nil
	}
	if m.Mode() != ModeEditor {
		return nil, nil
	}
	container, err := m.store.CreateContainer(ctx, source.Page(), name, nil)
	if err != nil {
		return nil, err
	}
	tree.Add(container)
	m.state.indexBlocks([]*blocks.Block{container})
	logging.ForContext(m.logger, ctx).Debug("manager.container.created", "page_id", source.Page().ID, "name", name, "block_id", container.ID)
	return container, nil
}

// IsDecorable reports whether a response should be wrapped by a page layout.
func (m *Manager) IsDecorable(req DecorationRequest) bool {
	return m.decorator.IsDecorable(req)
}

func (m *Manager) IsRouteNameDecorable(name string) bool {
	return m.decorator.IsRouteNameDecorable(name)
}

func (m *Manager) IsRouteURIDecorable(uri string) bool {
	return m.decorator.IsRouteURIDecorable(uri)
}
