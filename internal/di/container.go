package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-pagecms/internal/blocks"
	"github.com/goliatone/go-pagecms/internal/blocktypes"
	"github.com/goliatone/go-pagecms/internal/cache"
	"github.com/goliatone/go-pagecms/internal/commands"
	pagehttp "github.com/goliatone/go-pagecms/internal/http"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/logging/gologger"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/pages"
	"github.com/goliatone/go-pagecms/internal/pageservice"
	"github.com/goliatone/go-pagecms/internal/render"
	"github.com/goliatone/go-pagecms/internal/runtimeconfig"
	"github.com/goliatone/go-pagecms/internal/scheduler"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/internal/snapshots"
	"github.com/goliatone/go-pagecms/internal/urls"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// DefaultLayout is installed as the default template when no template
// directory is configured.
const DefaultLayout = `<!DOCTYPE html>
<html>
<head><title>{{ if .Page }}{{ .Page.Title }}{{ end }}</title></head>
<body>
<header>{{ index .Containers "header" }}</header>
<main>{{ index .Containers "content" }}{{ with .Params }}{{ with index . "content" }}{{ . }}{{ end }}{{ end }}</main>
<footer>{{ index .Containers "footer" }}</footer>
</body>
</html>`

// Container wires module dependencies from runtime configuration.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider
	auth           interfaces.AuthProvider
	sessions       *scs.SessionManager
	runner         cache.CommandRunner
	rssClient      blocktypes.HTTPDoer

	bunDB         *bun.DB
	ownsDB        bool
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	siteRepo     sites.Repository
	pageRepo     pages.Repository
	blockRepo    blocks.Repository
	snapshotRepo snapshots.Repository

	siteResolver sites.Resolver
	pageSvc      pages.Service
	blockSvc     blocks.Service
	snapshotSvc  snapshots.Service
	transformer  *snapshots.Transformer

	registry    *render.Registry
	decorator   *manager.Decorator
	selector    *manager.Selector
	urlGen      *urls.Generator
	cacheRouter *cache.Router
	signer      *cache.Signer
	renderer    *render.Renderer

	templates    *pageservice.TemplateManager
	output       interfaces.TemplateRenderer
	pageServices *pageservice.Registry
	exceptions   *pageservice.ExceptionStrategy

	commandSet commands.Set
	cron       *scheduler.Cron
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider derived from Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithAuth plugs the identity provider consulted by the selector.
func WithAuth(auth interfaces.AuthProvider) Option {
	return func(c *Container) {
		c.auth = auth
	}
}

// WithSessions overrides the scs session manager.
func WithSessions(sessions *scs.SessionManager) Option {
	return func(c *Container) {
		c.sessions = sessions
	}
}

func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache overrides the repository cache used by bun repositories.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithSiteRepository overrides the site repository.
func WithSiteRepository(repo sites.Repository) Option {
	return func(c *Container) {
		c.siteRepo = repo
	}
}

// WithTemplateRenderer replaces the html/template output renderer.
func WithTemplateRenderer(renderer interfaces.TemplateRenderer) Option {
	return func(c *Container) {
		c.output = renderer
	}
}

// WithPurgeRunner overrides the command runner of the esi and ssi backends.
func WithPurgeRunner(runner cache.CommandRunner) Option {
	return func(c *Container) {
		c.runner = runner
	}
}

// WithRSSClient overrides the http client of the rss block.
func WithRSSClient(client blocktypes.HTTPDoer) Option {
	return func(c *Container) {
		c.rssClient = client
	}
}

// NewContainer creates a container with the provided configuration.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container{Config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	steps := []func() error{
		c.configureLoggerProvider,
		c.configureStorage,
		c.configureRepositories,
		c.configureServices,
		c.configureSelector,
		c.configureCache,
		c.configurePageServices,
		c.configureCommands,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(c.Config.Logging.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     c.Config.Logging.Level,
			Format:    c.Config.Logging.Format,
			AddSource: c.Config.Logging.AddSource,
			Focus:     c.Config.Logging.Focus,
		})
		if err != nil {
			return fmt.Errorf("di: configure gologger: %w", err)
		}
		c.loggerProvider = provider
	}
	return nil
}

func (c *Container) configureStorage() error {
	if c.bunDB == nil {
		db, err := OpenDB(c.Config.Storage)
		if err != nil {
			return err
		}
		if db == nil {
			return nil
		}
		c.bunDB = db
		c.ownsDB = true
	}

	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if ttl := c.Config.Storage.CacheTTL; ttl > 0 {
			cfg.TTL = ttl
		}
		service, err := repocache.NewCacheService(cfg)
		if err == nil {
			c.cacheService = service
		}
	}
	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
	logging.ModuleLogger(c.loggerProvider, "cms.storage").Info("storage.configured", "driver", c.Config.Storage.Driver)
	return nil
}

func (c *Container) configureRepositories() error {
	if c.bunDB != nil {
		if c.siteRepo == nil {
			c.siteRepo = sites.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
		}
		c.pageRepo = pages.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
		c.blockRepo = blocks.NewBunRepository(c.bunDB)
		c.snapshotRepo = snapshots.NewBunRepository(c.bunDB)
		return nil
	}
	if c.siteRepo == nil {
		c.siteRepo = sites.NewMemoryRepository()
	}
	c.pageRepo = pages.NewMemoryRepository()
	c.blockRepo = blocks.NewMemoryRepository()
	c.snapshotRepo = snapshots.NewMemoryRepository()
	return nil
}

func (c *Container) configureServices() error {
	resolver, err := sites.NewResolver(c.siteRepo, c.Config.Sites.Strategy,
		sites.WithLogger(logging.SitesLogger(c.loggerProvider)))
	if err != nil {
		return err
	}
	c.siteResolver = resolver

	c.registry = render.NewRegistry()
	if c.output == nil {
		c.output = pageservice.NewHTMLTemplateRenderer(nil)
	}
	if err := blocktypes.Register(c.registry, blocktypes.Dependencies{
		Templates: c.output,
		Logger:    logging.RenderLogger(c.loggerProvider),
		RSSClient: c.rssClient,
	}); err != nil {
		return err
	}

	c.pageSvc = pages.NewService(c.pageRepo, pages.WithLogger(logging.PagesLogger(c.loggerProvider)))
	c.blockSvc = blocks.NewService(c.blockRepo,
		blocks.WithSettingsValidator(c.registry),
		blocks.WithPageMarker(c.pageSvc),
		blocks.WithLogger(logging.BlocksLogger(c.loggerProvider)),
	)

	codec, err := snapshots.CodecFor(c.Config.Snapshots.Codec)
	if err != nil {
		return err
	}
	c.transformer = snapshots.NewTransformer(codec)
	c.snapshotSvc = snapshots.NewService(c.snapshotRepo, c.pageSvc, c.blockSvc, c.transformer,
		snapshots.WithLogger(logging.SnapshotsLogger(c.loggerProvider)))
	return nil
}

func (c *Container) configureSelector() error {
	c.decorator = manager.NewDecorator(manager.DecoratorConfigFrom(c.Config.Decoration))
	if c.sessions == nil {
		c.sessions = scs.New()
		if lifetime := c.Config.Selector.SessionLifetime; lifetime > 0 {
			c.sessions.Lifetime = lifetime
		}
	}
	editor := manager.NewEditorStore(c.pageRepo, c.pageSvc, c.blockSvc,
		manager.WithDefaultTemplate(c.Config.Pages.DefaultTemplate))
	snapshot := manager.NewSnapshotStore(c.snapshotRepo, c.transformer, c.blockSvc)
	c.selector = manager.NewSelector(editor, snapshot,
		manager.WithSessions(c.sessions, c.Config.Selector.SessionKey),
		manager.WithAuth(c.auth, c.Config.Selector.EditorPermission),
		manager.WithSelectorDecorator(c.decorator),
		manager.WithSelectorLogger(logging.ManagerLogger(c.loggerProvider)),
	)
	return nil
}

func (c *Container) configureCache() error {
	generator, err := urls.NewGenerator(urls.Options{
		BaseURL:     c.Config.BaseURL,
		CachePrefix: c.Config.HTTP.CachePrefix,
		Routes:      c.Config.Routes,
	})
	if err != nil {
		return err
	}
	c.urlGen = generator
	c.signer = cache.NewSigner(c.Config.Cache.Token)

	router, err := cache.NewFromConfig(c.Config.Cache, cache.Dependencies{
		DB:     c.bunDBOrNil(),
		URLs:   generator,
		Runner: c.runner,
	}, cache.WithLogger(logging.CacheLogger(c.loggerProvider)))
	if err != nil {
		return err
	}
	c.cacheRouter = router
	c.renderer = render.NewRenderer(c.registry,
		render.WithCache(router),
		render.WithDebug(c.Config.Debug),
		render.WithTTL(c.Config.Cache.DefaultTTL),
		render.WithLogger(logging.RenderLogger(c.loggerProvider)),
	)
	return nil
}

func (c *Container) configurePageServices() error {
	c.templates = pageservice.NewTemplateManager(c.Config.Pages.DefaultTemplate)
	if dir := strings.TrimSpace(c.Config.Pages.TemplateDir); dir != "" {
		if _, err := c.templates.Load(os.DirFS(dir), "*.html"); err != nil {
			return err
		}
	}
	if _, err := c.templates.Get(c.Config.Pages.DefaultTemplate); err != nil {
		if err := c.templates.Add(pageservice.Template{
			Code:   c.Config.Pages.DefaultTemplate,
			Name:   "Default",
			Path:   "layouts/" + c.Config.Pages.DefaultTemplate + ".html",
			Source: DefaultLayout,
			Containers: []pageservice.ContainerDefinition{
				{Code: "header", Name: "Header"},
				{Code: "content", Name: "Main content"},
				{Code: "footer", Name: "Footer"},
			},
		}); err != nil {
			return err
		}
	}
	if installer, ok := c.output.(interface {
		Install(*pageservice.TemplateManager) error
	}); ok {
		if err := installer.Install(c.templates); err != nil {
			return err
		}
	}

	c.pageServices = pageservice.NewRegistry(c.Config.Pages.DefaultPageService)
	if err := c.pageServices.Register(pageservice.NewDefaultService(c.templates, c.renderer, c.output,
		pageservice.WithCode(c.Config.Pages.DefaultPageService),
		pageservice.WithLogger(logging.HTTPLogger(c.loggerProvider)),
	)); err != nil {
		return err
	}
	c.exceptions = pageservice.NewExceptionStrategy(c.Config.Pages.ErrorPages, c.pageServices,
		pageservice.WithDebug(c.Config.Debug),
		pageservice.WithExceptionLogger(logging.HTTPLogger(c.loggerProvider)),
	)
	return nil
}

func (c *Container) configureCommands() error {
	logger := commands.CommandLogger(c.loggerProvider, "pagecms")
	c.commandSet = commands.Set{
		CreateSnapshots:  commands.NewCreateSnapshotsHandler(c.snapshotSvc, logger),
		CleanupSnapshots: commands.NewCleanupSnapshotsHandler(c.snapshotSvc, c.siteRepo, logger),
		SyncRoutes: commands.NewSyncRoutesHandler(c.pageSvc, commands.SyncRoutesConfig{
			ErrorPages: c.errorPageRoutes(),
			Decorable:  c.decorator.IsRouteNameDecorable,
		}, logger),
		FlushCache: commands.NewFlushCacheHandler(c.cacheRouter, logger),
	}

	c.cron = scheduler.New(scheduler.WithLogger(logging.SchedulerLogger(c.loggerProvider)))
	return scheduler.RegisterCleanup(c.cron, c.Config.Snapshots.CleanupCron, c.Config.Snapshots.Keep, c.commandSet.CleanupSnapshots)
}

func (c *Container) errorPageRoutes() []string {
	out := make([]string, 0, len(c.Config.Pages.ErrorPages))
	for _, route := range c.Config.Pages.ErrorPages {
		out = append(out, route)
	}
	sort.Strings(out)
	return out
}

func (c *Container) bunDBOrNil() bun.IDB {
	if c.bunDB == nil {
		return nil
	}
	return c.bunDB
}

// Migrate creates the tables of the sql storage. It is a no-op for the
// memory driver.
func (c *Container) Migrate(ctx context.Context) error {
	if c.bunDB == nil {
		return nil
	}
	return CreateSchema(ctx, c.bunDB)
}

// Handler mounts the page runtime on a new chi router. Application routes
// may be added to the returned router and wrapped with Decorate.
func (c *Container) Handler() chi.Router {
	r := chi.NewRouter()
	c.Mount(r)
	return r
}

// Mount registers the runtime middlewares and routes on r.
func (c *Container) Mount(r chi.Router) {
	httpLogger := logging.HTTPLogger(c.loggerProvider)
	pagehttp.Mount(r, pagehttp.Options{
		CachePrefix: c.Config.HTTP.CachePrefix,
		Sessions:    c.sessions,
		Selector:    c.selector,
		Resolver:    c.siteResolver,
		Cache: pagehttp.NewCacheHandler(c.selector, c.renderer, c.cacheRouter, c.signer,
			pagehttp.WithPublicFragments(c.Config.Cache.Public),
			pagehttp.WithFlushLimit(c.Config.HTTP.FlushRate, c.Config.HTTP.FlushBurst),
			pagehttp.WithCacheLogger(httpLogger),
		),
		Pages: pagehttp.NewPageHandler(c.siteResolver, c.selector, c.pageServices, c.exceptions,
			pagehttp.WithPageLogger(httpLogger),
		),
		Logger: httpLogger,
	})
}

// Decorate wraps an application route with the page layout of its hybrid page.
func (c *Container) Decorate(route string) func(http.Handler) http.Handler {
	decoration := pagehttp.NewDecoration(c.selector, c.pageServices, logging.HTTPLogger(c.loggerProvider))
	return func(next http.Handler) http.Handler {
		return pagehttp.SiteMiddleware(c.siteResolver, logging.HTTPLogger(c.loggerProvider))(decoration.Decorate(route)(next))
	}
}

// Start launches the cron scheduler.
func (c *Container) Start() {
	c.cron.Start()
}

// Close stops the scheduler and releases cache backends and the database
// when the container opened it.
func (c *Container) Close() error {
	var errs []error
	if c.cron != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		errs = append(errs, c.cron.Stop(ctx))
		cancel()
	}
	if c.cacheRouter != nil {
		errs = append(errs, c.cacheRouter.Close())
	}
	if c.ownsDB && c.bunDB != nil {
		errs = append(errs, c.bunDB.Close())
	}
	return errors.Join(errs...)
}

func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }
func (c *Container) SiteRepository() sites.Repository          { return c.siteRepo }
func (c *Container) SiteResolver() sites.Resolver              { return c.siteResolver }
func (c *Container) PageService() pages.Service                { return c.pageSvc }
func (c *Container) BlockService() blocks.Service              { return c.blockSvc }
func (c *Container) SnapshotService() snapshots.Service        { return c.snapshotSvc }
func (c *Container) Registry() *render.Registry                { return c.registry }
func (c *Container) Renderer() *render.Renderer                { return c.renderer }
func (c *Container) Selector() *manager.Selector               { return c.selector }
func (c *Container) CacheRouter() *cache.Router                { return c.cacheRouter }
func (c *Container) URLGenerator() *urls.Generator             { return c.urlGen }
func (c *Container) Templates() *pageservice.TemplateManager   { return c.templates }
func (c *Container) PageServices() *pageservice.Registry       { return c.pageServices }
func (c *Container) Commands() commands.Set                    { return c.commandSet }
func (c *Container) Scheduler() *scheduler.Cron                { return c.cron }
