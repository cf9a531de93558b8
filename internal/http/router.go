package http

import (
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/manager"
	"github.com/goliatone/go-pagecms/internal/sites"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// DefaultCachePrefix mounts the cache endpoints.
const DefaultCachePrefix = "/_cache"

// Options wires the handlers mounted by Mount.
type Options struct {
	CachePrefix string
	Sessions    *scs.SessionManager
	Selector    *manager.Selector
	Resolver    sites.Resolver
	Cache       *CacheHandler
	Pages       *PageHandler
	Logger      interfaces.Logger
}

// Mount registers the session and selector middlewares, the cache endpoints
// and the catch all page handler on r. Application routes registered on r
// afterwards share the middlewares and may use Decoration.Decorate.
func Mount(r chi.Router, opts Options) {
	if opts.Sessions != nil {
		r.Use(opts.Sessions.LoadAndSave)
	}
	if opts.Selector != nil {
		r.Use(opts.Selector.Middleware)
	}
	prefix := "/" + strings.Trim(opts.CachePrefix, "/")
	if prefix == "/" {
		prefix = DefaultCachePrefix
	}
	if opts.Cache != nil {
		r.Route(prefix, opts.Cache.Routes)
	}
	if opts.Pages != nil {
		pages := chi.Chain(SiteMiddleware(opts.Resolver, opts.Logger)).Handler(opts.Pages)
		r.Handle("/*", pages)
	}
}

// SiteMiddleware resolves the request site and stores it on the context.
// Requests that resolve to a redirect are redirected; requests without a
// site pass through untouched.
func SiteMiddleware(resolver sites.Resolver, logger interfaces.Logger) func(http.Handler) http.Handler {
	logger = logging.Ensure(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := sites.FromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			res, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				logging.ForContext(logger, r.Context()).Debug("http.site.unresolved", "host", r.Host, "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if res.RedirectURL != "" {
				http.Redirect(w, r, res.RedirectURL, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(sites.WithSite(r.Context(), res.Site)))
		})
	}
}
