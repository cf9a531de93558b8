package pagecms

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/commands"
	"github.com/goliatone/go-pagecms/internal/di"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/goliatone/go-pagecms/internal/scheduler"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/internal/snapshots"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// PageService exports the pages service contract.
type PageService = pages.Service

// BlockService exports the blocks service contract.
type BlockService = blocks.Service

// SnapshotService exports the snapshot publishing contract.
type SnapshotService = snapshots.Service

// SiteRepository exports the site store contract.
type SiteRepository = sites.Repository

type (
	Site             = sites.Site
	Page             = pages.Page
	Block            = blocks.Block
	Snapshot         = snapshots.Snapshot
	Mode             = manager.Mode
	Selector         = manager.Selector
	BlockRenderer    = render.BlockRenderer
	Commands         = commands.Set
	Scheduler        = scheduler.Cron
	TemplateRenderer = interfaces.TemplateRenderer
	AuthProvider     = interfaces.AuthProvider
	LoggerProvider   = interfaces.LoggerProvider
)

const (
	ModeEditor   = manager.ModeEditor
	ModeSnapshot = manager.ModeSnapshot
)

// Option mirrors di.Option for callers of New.
type Option = di.Option

var (
	WithLoggerProvider   = di.WithLoggerProvider
	WithAuth             = di.WithAuth
	WithSessions         = di.WithSessions
	WithBunDB            = di.WithBunDB
	WithCache            = di.WithCache
	WithSiteRepository   = di.WithSiteRepository
	WithTemplateRenderer = di.WithTemplateRenderer
	WithPurgeRunner      = di.WithPurgeRunner
	WithRSSClient        = di.WithRSSClient
)

// Module is the top level page runtime façade.
type Module struct {
	container *di.Container
}

// New constructs the runtime from cfg and optional DI overrides.
func New(cfg Config, opts ...Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Migrate creates the sql tables when a sql storage driver is configured.
func (m *Module) Migrate(ctx context.Context) error {
	return m.container.Migrate(ctx)
}

// Sites returns the site repository.
func (m *Module) Sites() SiteRepository {
	return m.container.SiteRepository()
}

// Pages returns the configured page service.
func (m *Module) Pages() PageService {
	return m.container.PageService()
}

// Blocks returns the configured block service.
func (m *Module) Blocks() BlockService {
	return m.container.BlockService()
}

// Snapshots returns the snapshot publishing service.
func (m *Module) Snapshots() SnapshotService {
	return m.container.SnapshotService()
}

// RegisterBlock adds a custom block renderer.
func (m *Module) RegisterBlock(renderer BlockRenderer) error {
	return m.container.Registry().Register(renderer)
}

// Selector returns the editor/snapshot mode selector.
func (m *Module) Selector() *Selector {
	return m.container.Selector()
}

// Commands returns the command handlers.
func (m *Module) Commands() Commands {
	return m.container.Commands()
}

// Scheduler returns the cron scheduler running periodic commands.
func (m *Module) Scheduler() *Scheduler {
	return m.container.Scheduler()
}

// Handler returns a chi router serving pages and cache fragments.
func (m *Module) Handler() chi.Router {
	return m.container.Handler()
}

// Mount registers the runtime on an existing chi router.
func (m *Module) Mount(r chi.Router) {
	m.container.Mount(r)
}

// Decorate wraps an application route with its hybrid page layout.
func (m *Module) Decorate(route string) func(http.Handler) http.Handler {
	return m.container.Decorate(route)
}

// Start launches background jobs.
func (m *Module) Start() {
	m.container.Start()
}

// Close stops background jobs and releases connections.
func (m *Module) Close() error {
	return m.container.Close()
}
