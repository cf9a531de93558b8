package sites

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/internal/runtimeconfig"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"golang.org/x/text/language"
)

// Resolution is the outcome of matching a request to a site.
type Resolution struct {
	Site *Site
	// PathInfo is the request path relative to the site path.
	PathInfo string
	// RedirectURL is set when the request should be redirected to the
	// selected site's root instead of being served.
	RedirectURL string
}

// Resolver maps inbound requests to sites.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (*Resolution, error)
}

// ResolverOption configures the resolver.
type ResolverOption func(*resolver)

// WithClock overrides the clock used for enabled windows.
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *resolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger interfaces.Logger) ResolverOption {
	return func(r *resolver) {
		r.logger = logging.Ensure(logger)
	}
}

type resolver struct {
	repo     Repository
	strategy string
	now      func() time.Time
	logger   interfaces.Logger
}

// NewResolver builds a resolver for one of the configured strategies.
func NewResolver(repo Repository, strategy string, opts ...ResolverOption) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("sites: repository required")
	}
	switch strategy {
	case runtimeconfig.StrategyHost, runtimeconfig.StrategyHostWithLocale,
		runtimeconfig.StrategyHostWithPath, runtimeconfig.StrategyHostPathWithLocale:
	default:
		return nil, fmt.Errorf("%w: %s", runtimeconfig.ErrSiteStrategyUnknown, strategy)
	}
	r := &resolver{
		repo:     repo,
		strategy: strategy,
		now:      time.Now,
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *resolver) Resolve(ctx context.Context, req *http.Request) (*Resolution, error) {
	if req == nil {
		return nil, fmt.Errorf("sites: request required")
	}
	all, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	candidates := r.candidates(all, req.Host)
	path := req.URL.Path
	if path == "" {
		path = "/"
	}

	var res *Resolution
	switch r.strategy {
	case runtimeconfig.StrategyHost:
		res = resolved(pickPreferred(candidates), path)
	case runtimeconfig.StrategyHostWithLocale:
		res = resolved(pickByLocale(candidates, req.Header.Get("Accept-Language")), path)
	case runtimeconfig.StrategyHostWithPath:
		res = matchPath(candidates, path, pickPreferred)
	case runtimeconfig.StrategyHostPathWithLocale:
		accept := req.Header.Get("Accept-Language")
		res = matchPath(candidates, path, func(list []*Site) *Site {
			return pickByLocale(list, accept)
		})
	}

	if res == nil || res.Site == nil {
		r.logger.Info("sites.resolve.miss", "host", req.Host, "path", path, "strategy", r.strategy)
		return nil, &NotFoundError{Key: req.Host + path}
	}
	r.logger.Debug("sites.resolve.hit", "site", res.Site.Name, "path_info", res.PathInfo, "redirect", res.RedirectURL)
	return res, nil
}

// candidates keeps enabled sites matching host. Exact host matches shadow
// wildcard sites.
func (r *resolver) candidates(all []*Site, host string) []*Site {
	now := r.now()
	exact := []*Site{}
	wildcard := []*Site{}
	for _, site := range all {
		if !site.IsEnabledAt(now) || !site.MatchesHost(host) {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(site.Host), WildcardHost) && normalizeHost(host) != WildcardHost {
			wildcard = append(wildcard, site)
			continue
		}
		exact = append(exact, site)
	}
	if len(exact) > 0 {
		return exact
	}
	return wildcard
}

func resolved(site *Site, path string) *Resolution {
	if site == nil {
		return nil
	}
	return &Resolution{Site: site, PathInfo: path}
}

// pickPreferred returns the default site, else the first candidate.
func pickPreferred(list []*Site) *Site {
	for _, site := range list {
		if site.IsDefault {
			return site
		}
	}
	if len(list) > 0 {
		return list[0]
	}
	return nil
}

func pickByLocale(list []*Site, acceptLanguage string) *Site {
	if len(list) == 0 {
		return nil
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return pickPreferred(list)
	}
	supported := make([]language.Tag, 0, len(list))
	indexes := make([]int, 0, len(list))
	for idx, site := range list {
		tag, err := language.Parse(strings.ReplaceAll(site.Locale, "_", "-"))
		if err != nil {
			continue
		}
		supported = append(supported, tag)
		indexes = append(indexes, idx)
	}
	if len(supported) == 0 {
		return pickPreferred(list)
	}
	_, matched, confidence := language.NewMatcher(supported).Match(prefs...)
	if confidence == language.No {
		return pickPreferred(list)
	}
	return list[indexes[matched]]
}

// matchPath selects the site with the longest relative path prefixing path.
// Without a match the fallback picker chooses a site and the caller is
// redirected to that site's root.
func matchPath(list []*Site, path string, fallback func([]*Site) *Site) *Resolution {
	var best *Site
	bestLen := -1
	for _, site := range list {
		prefix := site.Path()
		if prefix != "" && path != prefix && !strings.HasPrefix(path, prefix+"/") {
			continue
		}
		if len(prefix) > bestLen || (len(prefix) == bestLen && site.IsDefault && !best.IsDefault) {
			best = site
			bestLen = len(prefix)
		}
	}
	if best != nil {
		info := strings.TrimPrefix(path, best.Path())
		if info == "" {
			info = "/"
		}
		return &Resolution{Site: best, PathInfo: info}
	}
	chosen := fallback(list)
	if chosen == nil {
		return nil
	}
	return &Resolution{Site: chosen, PathInfo: "/", RedirectURL: chosen.Path() + "/"}
}

type siteContextKey struct{}

// WithSite stores the resolved site on ctx.
func WithSite(ctx context.Context, site *Site) context.Context {
	return context.WithValue(ctx, siteContextKey{}, site)
}

// FromContext returns the site stored by WithSite.
func FromContext(ctx context.Context) (*Site, bool) {
	if ctx == nil {
		return nil, false
	}
	site, ok := ctx.Value(siteContextKey{}).(*Site)
	return site, ok && site != nil
}
